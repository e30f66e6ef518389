// File: internal/stubws/doc.go
// Package stubws implements spec.md §4.4's Stub-WS: the transport-
// agnostic glue turning a PROTO-WS endpoint into either a client-side
// local API (calls serialized out, replies translated back to local
// dispatches) or a server-side adapter (incoming calls handed to a
// local apiset.Dispatcher).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package stubws
