// Package localserver provides a Unix socket server for local management.
//
// Server listens on a Unix domain socket and accepts connections, closing
// each one without reading from it. Handler.Execute recognises the
// commands status, shutdown, reload and drain; for each it returns nil
// without acting or writing output, and for any other command it writes
// an "unknown command" line. Server does not call Handler. There is no
// named-pipe listener and no authentication step; access is limited only
// by the socket file's permissions.
//
// @design DS-0301
package localserver
