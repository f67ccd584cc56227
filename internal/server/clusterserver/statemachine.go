package clusterserver

import (
	"encoding/json"
	"fmt"

	"github.com/ordkv/ordkv/internal/kv/engine"
)

// command is the replicated log entry payload: a single Put or Del
// against the embedded engine.
type command struct {
	Op    string `json:"op"` // "PUT" or "DEL"
	Key   []byte `json:"key"`
	Value []byte `json:"value,omitempty"`
}

// EngineStateMachine applies committed Raft log entries to an embedded
// engine, making it a raft.StateMachine (C14 <-> C10 integration).
type EngineStateMachine struct {
	eng *engine.Engine
}

// NewEngineStateMachine wraps eng as a raft.StateMachine.
func NewEngineStateMachine(eng *engine.Engine) *EngineStateMachine {
	return &EngineStateMachine{eng: eng}
}

// Apply implements raft.StateMachine.
func (m *EngineStateMachine) Apply(payload []byte) ([]byte, error) {
	var cmd command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("clusterserver: decode command: %w", err)
	}

	switch cmd.Op {
	case "PUT":
		if err := m.eng.Put(cmd.Key, cmd.Value); err != nil {
			return nil, err
		}
	case "DEL":
		if err := m.eng.Del(cmd.Key); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("clusterserver: unknown op %q", cmd.Op)
	}
	return nil, nil
}

// EncodePut encodes a PUT command for submission via HandleClientRequest.
func EncodePut(key, value []byte) []byte {
	data, _ := json.Marshal(command{Op: "PUT", Key: key, Value: value})
	return data
}

// EncodeDel encodes a DEL command for submission via HandleClientRequest.
func EncodeDel(key []byte) []byte {
	data, _ := json.Marshal(command{Op: "DEL", Key: key})
	return data
}
