// File: internal/protows/doc.go
// Package protows implements PROTO-WS: the binder's binary, asymmetric,
// length-delimited, little-endian RPC framing protocol, carried over a
// WebSocket-like binary channel (spec.md §3.3/§4.3).
//
// A single Endpoint may act as client, server, or both (in this
// implementation the two roles share one type, selected by which
// callbacks are installed); it owns one writer mutex serializing frame
// emission, a table of in-flight client calls keyed by callid, and a
// table of in-flight client describes keyed by descid. Server-side
// callers install OnCall/OnDescribe; client-side callers use Call/
// Describe and get a result delivered to a per-call closure.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package protows
