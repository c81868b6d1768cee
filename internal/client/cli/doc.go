// Package cli provides the interactive device catalog client.
//
// It wires configuration, the local SQLite store, the remote device service,
// a background connectivity watcher and a REPL that calls DeviceService.
// Every command works offline; changes made without a connection are
// replayed on the next refresh.
//
// Commands: list, refresh, add, show <id>, checkin <id>, checkout <id> [name],
// delete <id>, status, reset, exit.
package cli
