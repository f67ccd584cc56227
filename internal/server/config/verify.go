// Package config defines the server configuration structure.
package config

import (
	"errors"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyCluster(&cfg.Cluster); err != nil {
		return err
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	// Check if data directory exists or can be created
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}

	switch cfg.Compaction {
	case "LEVELED", "TIERED", "SIZE_TIERED", "TIME_WINDOW":
	default:
		return errors.New("storage.compaction must be one of LEVELED, TIERED, SIZE_TIERED, TIME_WINDOW")
	}

	return nil
}

func verifyCluster(cfg *ClusterSection) error {
	if cfg.RaftAddr == "" {
		return errors.New("cluster.raft_addr is required")
	}
	return nil
}
