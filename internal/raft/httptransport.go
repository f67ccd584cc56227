package raft

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPTransport sends Raft RPCs as JSON POSTs, the same plain-HTTP
// style the server package fronts the KV engine with. Peer addresses
// are "host:port"; handlers are mounted at /raft/request_vote and
// /raft/append_entries.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport returns a transport with the given per-RPC timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) post(peer, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := t.Client.Post(fmt.Sprintf("http://%s%s", peer, path), "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("raft: peer %s returned %s", peer, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SendRequestVote implements Transport.
func (t *HTTPTransport) SendRequestVote(peer string, args RequestVoteArgs) (RequestVoteReply, error) {
	var reply RequestVoteReply
	err := t.post(peer, "/raft/request_vote", args, &reply)
	return reply, err
}

// SendAppendEntries implements Transport.
func (t *HTTPTransport) SendAppendEntries(peer string, args AppendEntriesArgs) (AppendEntriesReply, error) {
	var reply AppendEntriesReply
	err := t.post(peer, "/raft/append_entries", args, &reply)
	return reply, err
}

// Handler returns an http.Handler exposing this node's RPC endpoints,
// to be mounted by the owning server.
func Handler(n *Node) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/raft/request_vote", func(w http.ResponseWriter, r *http.Request) {
		var args RequestVoteArgs
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(n.HandleRequestVote(args))
	})
	mux.HandleFunc("/raft/append_entries", func(w http.ResponseWriter, r *http.Request) {
		var args AppendEntriesArgs
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(n.HandleAppendEntries(args))
	})
	return mux
}
