// Package config defines the server configuration structure.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/ordkv/ordkv/internal/kv/twopc"
	"github.com/ordkv/ordkv/internal/raft"
)

// ToRaftConfig converts ServerConfig to raft.Config for the hand-rolled
// Raft node (C14). stateDir holds the node's raft-state (bbolt).
//
// It generates a NodeID when none is configured; timing values are
// copied as they are, and raft.Open fills in any that are zero.
func ToRaftConfig(cfg *ServerConfig, stateDir string, logger *slog.Logger) (raft.Config, error) {
	if cfg == nil {
		return raft.Config{}, fmt.Errorf("server config is nil")
	}

	nodeID, err := resolveNodeID(cfg.Cluster.NodeID)
	if err != nil {
		return raft.Config{}, err
	}
	if cfg.Cluster.NodeID == "" {
		logger.Info("generated cluster node ID", "node_id", nodeID)
	}

	return raft.Config{
		NodeID:             nodeID,
		Peers:              cfg.Cluster.Peers,
		StateDir:           stateDir,
		ElectionTimeoutMin: cfg.Cluster.ElectionTimeoutMin,
		ElectionTimeoutMax: cfg.Cluster.ElectionTimeoutMax,
		HeartbeatInterval:  cfg.Cluster.HeartbeatInterval,
		Logger:             logger,
	}, nil
}

// ToTwoPCConfig converts ServerConfig to twopc.Config for the 2PC
// coordinator (C15) this node runs when fronting cross-node
// transactions.
func ToTwoPCConfig(cfg *ServerConfig) (twopc.Config, error) {
	if cfg == nil {
		return twopc.Config{}, fmt.Errorf("server config is nil")
	}

	nodeID, err := resolveNodeID(cfg.Cluster.NodeID)
	if err != nil {
		return twopc.Config{}, err
	}

	return twopc.Config{
		NodeID:           nodeID,
		PrepareTimeout:   cfg.Cluster.PrepareTimeout,
		MaxRetryAttempts: cfg.Cluster.MaxRetryAttempts,
	}, nil
}

func resolveNodeID(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return generateNodeID()
}

// generateNodeID generates a unique node identifier.
//
// Format: ordnode-<16 hex chars> (e.g., "ordnode-a1b2c3d4e5f67890")
func generateNodeID() (string, error) {
	buf := make([]byte, 8) // 8 bytes = 16 hex chars
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return "ordnode-" + hex.EncodeToString(buf), nil
}
