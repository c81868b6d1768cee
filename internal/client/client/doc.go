// Package client contains the client-side building blocks that sit below the
// sync services.
//
// # Overview
//
// The package provides:
//  1. The Client interface for the remote device service: List, Create,
//     SetCheckedIn, SetCheckedOut, Delete and Ping.
//  2. HTTPClient, the HTTP/JSON implementation. Each call is bounded by a
//     timeout, carries an X-Request-ID header and maps every failure to
//     common.ErrTransport.
//  3. Reachability: StaticReachability and a Watcher that pings on an
//     interval and caches the answer.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) wiring a
//     SQLite database with embedded goose migrations.
package client
