// File: internal/wsbridge/doc.go
// Package wsbridge carries PROTO-WS binary messages (spec.md §4.3) over
// the teacher's WebSocket connection types: protocol.WSConnection on the
// server side, client.WebSocketClient on the client side. Each PROTO-WS
// wire message travels as exactly one WebSocket binary frame.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsbridge
