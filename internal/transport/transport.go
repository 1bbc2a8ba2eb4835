// Package transport implements the message-framed duplex connections that
// carry instrumentation-protocol traffic to one remote target.
//
// Two transports are provided:
//   - WebSocket (gorilla/websocket), the wire most inspector endpoints speak,
//     established through Dial with per-attempt timeout and retry
//   - Pipe, NUL-framed messages over an io.ReadWriteCloser, the
//     --remote-debugging-pipe convention for child-process targets
//
// Both deliver inbound messages in receipt order on a channel, fire a close
// notification exactly once, and guarantee that Close returns only after the
// connection has actually shut down, so no send can race past teardown.
package transport

import "time"

// Message is one inbound protocol frame with its capture timestamp.
type Message struct {
	Data       []byte
	ReceivedAt time.Time
}

// Transport is one ordered, reliable, message-framed duplex connection.
type Transport interface {
	// Send writes one message. Fire and forget: write errors after
	// establishment surface only through the close notification.
	Send(data []byte) error

	// Messages delivers inbound messages in receipt order. The channel is
	// closed when the connection ends.
	Messages() <-chan Message

	// Done is closed exactly once when the connection has ended.
	Done() <-chan struct{}

	// Close initiates shutdown and returns after Done has fired.
	Close() error
}
