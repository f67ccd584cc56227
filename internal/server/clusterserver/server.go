package clusterserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ordkv/ordkv/internal/kv/engine"
	"github.com/ordkv/ordkv/internal/kv/twopc"
	"github.com/ordkv/ordkv/internal/raft"
)

// Config configures a cluster Server.
type Config struct {
	Raft   raft.Config
	TwoPC  twopc.Config
	Engine *engine.Engine
	Logger *slog.Logger
}

// Server is one cluster node: a Raft node replicating writes to its
// local engine, a 2PC coordinator for cross-node transactions that
// span it, and an HTTP listener serving the Raft RPCs (the 2PC
// coordinator has no HTTP endpoint).
type Server struct {
	node        *raft.Node
	coordinator *twopc.Coordinator
	applier     *EngineApplier
	httpSrv     *http.Server
	logger      *slog.Logger
}

// New opens the cluster node's Raft state and wires it to cfg.Engine.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sm := NewEngineStateMachine(cfg.Engine)
	transport := raft.NewHTTPTransport(cfg.Raft.RPCTimeout)

	node, err := raft.Open(cfg.Raft, sm, transport)
	if err != nil {
		return nil, fmt.Errorf("clusterserver: open raft node: %w", err)
	}

	return &Server{
		node:        node,
		coordinator: twopc.NewCoordinator(cfg.TwoPC),
		applier:     NewEngineApplier(cfg.Engine),
		logger:      logger,
	}, nil
}

// Put replicates a PUT through the Raft log and returns once committed.
func (s *Server) Put(ctx context.Context, key, value []byte) error {
	return s.submit(ctx, EncodePut(key, value))
}

// Del replicates a DEL through the Raft log and returns once committed.
func (s *Server) Del(ctx context.Context, key []byte) error {
	return s.submit(ctx, EncodeDel(key))
}

func (s *Server) submit(ctx context.Context, payload []byte) error {
	resp := s.node.HandleClientRequest(ctx, raft.ClientRequest{Command: payload})
	switch resp.Result {
	case raft.ResultSuccess:
		return nil
	case raft.ResultNotLeader:
		return fmt.Errorf("clusterserver: not leader, hint=%s", resp.LeaderHint)
	case raft.ResultTimeout:
		return fmt.Errorf("clusterserver: request timed out")
	default:
		return fmt.Errorf("clusterserver: internal error")
	}
}

// Coordinator returns the node's 2PC coordinator, for cross-node
// transactions that span multiple cluster participants.
func (s *Server) Coordinator() *twopc.Coordinator {
	return s.coordinator
}

// Applier returns the node's local 2PC applier, used when this node is
// itself enlisted as a transaction participant.
func (s *Server) Applier() *EngineApplier {
	return s.applier
}

// ListenAndServe mounts the Raft RPC handlers and serves them on addr
// until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: raft.Handler(s.node)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := s.node.Run(ctx); err != nil {
			s.logger.Error("clusterserver: raft node stopped", "error", err)
		}
	}()

	s.logger.Info("clusterserver: listening", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close stops the Raft node and releases its state store.
func (s *Server) Close() error {
	return s.node.Close()
}
