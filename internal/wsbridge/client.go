// File: internal/wsbridge/client.go

package wsbridge

import (
	"github.com/momentics/hioload-afb/client"
	"github.com/momentics/hioload-afb/internal/protows"
	"github.com/momentics/hioload-afb/protocol"
)

// ClientTransport adapts a client.WebSocketClient into a protows.Transport.
type ClientTransport struct {
	wsc *client.WebSocketClient
}

// NewClientTransport wraps an already-connected wsc.
func NewClientTransport(wsc *client.WebSocketClient) *ClientTransport {
	return &ClientTransport{wsc: wsc}
}

// Write sends frame as a single masked binary WebSocket frame.
func (t *ClientTransport) Write(frame []byte) error {
	return t.wsc.SendFrame(&protocol.WSFrame{
		IsFinal:    true,
		Opcode:     protocol.OpcodeBinary,
		PayloadLen: int64(len(frame)),
		Payload:    frame,
	})
}

// Serve polls RecvBatch and feeds binary frames to ep.HandleIncoming
// until the client is closed. Blocks the calling goroutine.
func (t *ClientTransport) Serve(ep *protows.Endpoint) {
	defer ep.Hangup()
	for {
		frames, err := t.wsc.RecvBatch()
		if err != nil {
			return
		}
		for _, wsf := range frames {
			if wsf.Opcode != protocol.OpcodeBinary {
				continue
			}
			buf := wsf.Payload
			for len(buf) > 0 {
				n, herr := ep.HandleIncoming(buf)
				if herr != nil || n == 0 {
					break
				}
				buf = buf[n:]
			}
		}
	}
}
