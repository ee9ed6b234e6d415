// Package tunnel implements the CONNECT passthrough relay at the heart of
// postern.
//
// Features:
//   - Intercepts HTTP CONNECT requests via the server's connection hijack and
//     bridges the raw client stream to a single TCP backend (the local SSH
//     daemon by default)
//   - Emits the declared 405 response head before tunneling, so the HTTP
//     exchange stays well formed even though raw bytes take over
//   - Runs the two pipe directions as independent goroutines joined with a
//     wait-for-both barrier; neither direction cancels the other
//   - Guarantees cleanup on every exit path: the backend socket is closed and
//     exactly one zero-length write reaches the client stream
//   - Optional idle and total-duration timeouts for deployments that cannot
//     tolerate the faithful wait-forever behavior
//   - A WebSocket variant that feeds upgraded connections through the same
//     relay core
//
// Usage:
//  1. Construct a Relay with the backend address (or leave it zero for
//     127.0.0.1:22)
//  2. Mount (*Relay).Middleware around the rest of the handler chain; every
//     non-CONNECT request passes through untouched
//  3. Optionally mount (*Relay).WebSocketHandler on an upgrade path
package tunnel
