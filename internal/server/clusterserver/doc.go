// Package clusterserver provides the cluster communication server.
//
// It integrates the hand-rolled Raft node (C14) for log replication and
// the 2PC coordinator/participant (C15) for cross-node transactions
// over an embedded engine (C10) replica; the Raft RPCs are served over
// plain HTTP.
package clusterserver
