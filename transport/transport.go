// Package transport provides the framed RPC channel the client talks to the
// proxy over. A request addressed to a handler ID is answered by one or more
// response frames in order; unary operations answer with a single frame and
// query executions answer with a frame per result chunk.
package transport

import (
	"github.com/asiminischi/informix-proxy/errwrap"
)

// Connection is one client-side channel to the proxy. Connections are safe
// for concurrent use; response streams are single-consumer.
type Connection interface {
	// SendRequest sends a request and returns the stream of response frames.
	SendRequest(handlerID int, request []byte) (*ResponseStream, error)

	Close() error
}

type ConnectionFactory func(address string) (Connection, error)

// ResponseWriter writes one response frame for a request. last marks the
// final frame of the response; a non-nil err produces a terminal error
// frame instead of a payload frame.
type ResponseWriter func(response []byte, last bool, err error) error

type RequestHandler func(ctx *ConnectionContext, request []byte, responseWriter ResponseWriter) error

type ConnectionContext struct {
	ConnectionID int
}

type Server interface {
	Start() error
	Stop() error
	Address() string
	RegisterHandler(handlerID int, handler RequestHandler) bool
}

// Error is a channel-level failure. It is deliberately distinct from
// common.ProxyError: recovery policy for transport failures belongs to the
// caller, so they are passed through unwrapped.
type Error struct {
	Msg string
}

func (e Error) Error() string {
	return e.Msg
}

const (
	transportV1 uint16 = 1

	frameFlagError byte = 1
	frameFlagLast  byte = 2

	// Response frames are buffered per stream so the connection read loop is
	// not stalled by a consumer between receives.
	streamChannelSize = 100
)

type frameHolder struct {
	payload []byte
	last    bool
	err     error
}

// ResponseStream delivers the response frames for one request, in arrival
// order. Receive blocks until the next frame is available.
type ResponseStream struct {
	ch     chan frameHolder
	cancel func()
	done   bool
}

// Receive returns the next frame payload. last reports whether this was the
// final frame of the response. After the final frame or an error the stream
// is exhausted.
func (r *ResponseStream) Receive() (payload []byte, last bool, err error) {
	if r.done {
		return nil, true, Error{Msg: "response stream already consumed"}
	}
	holder := <-r.ch
	if holder.err != nil || holder.last {
		r.done = true
	}
	return holder.payload, holder.last, holder.err
}

// Cancel abandons the stream. Frames still in flight are dropped by the
// connection.
func (r *ResponseStream) Cancel() {
	if r.done {
		return
	}
	r.done = true
	if r.cancel != nil {
		r.cancel()
	}
}

// SendRPC sends a request whose response is a single frame and returns its
// payload.
func SendRPC(conn Connection, handlerID int, request []byte) ([]byte, error) {
	stream, err := conn.SendRequest(handlerID, request)
	if err != nil {
		return nil, err
	}
	response, last, err := stream.Receive()
	if err != nil {
		return nil, err
	}
	if !last {
		stream.Cancel()
		return nil, errwrap.Errorf("handler %d sent a streamed response to a unary request", handlerID)
	}
	return response, nil
}
