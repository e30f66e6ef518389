// File: internal/wsbridge/server.go

package wsbridge

import (
	"github.com/momentics/hioload-afb/internal/protows"
	"github.com/momentics/hioload-afb/protocol"
)

// ServerTransport adapts a protocol.WSConnection (accepted by
// transport.WebSocketListener) into a protows.Transport.
type ServerTransport struct {
	conn *protocol.WSConnection
}

// NewServerTransport wraps conn. Call conn.Start() before Serve.
func NewServerTransport(conn *protocol.WSConnection) *ServerTransport {
	return &ServerTransport{conn: conn}
}

// Write sends frame as a single unmasked binary WebSocket frame.
func (t *ServerTransport) Write(frame []byte) error {
	return t.conn.SendFrame(&protocol.WSFrame{
		IsFinal:    true,
		Opcode:     protocol.OpcodeBinary,
		PayloadLen: int64(len(frame)),
		Payload:    frame,
	})
}

// Serve reads binary frames from the connection's inbox and hands each
// to ep.HandleIncoming until the connection closes. Non-binary frames
// (text, control) are ignored; connection.go's recvLoop already answers
// pings and handles close. Blocks the calling goroutine.
func (t *ServerTransport) Serve(ep *protows.Endpoint) {
	defer ep.Hangup()
	inbox := t.conn.GetInboxChan()
	for {
		select {
		case <-t.conn.Done():
			return
		case wsf, ok := <-inbox:
			if !ok {
				return
			}
			if wsf.Opcode != protocol.OpcodeBinary {
				continue
			}
			buf := wsf.Payload
			for len(buf) > 0 {
				n, err := ep.HandleIncoming(buf)
				if err != nil || n == 0 {
					break
				}
				buf = buf[n:]
			}
		}
	}
}
