// Package wsbridge implements the WebSocket Bridge: it
// upgrades an HTTP request, splits the socket into an input byte stream and
// an output byte stream exposed to the component as resources, and
// multiplexes outbound writes through a bounded channel. Built on
// github.com/gorilla/websocket.
package wsbridge

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hayride-dev/hayride/herr"
	"github.com/hayride-dev/hayride/streamadapter"
)

// queueCapacity is the bounded MPSC capacity for both the inbound and
// outbound frame queues.
const queueCapacity = 2048

// upgrader accepts only genuine WebSocket upgrade requests, rejecting
// non-upgrade requests.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// OutputStream is the component-facing output-stream resource: writes
// enqueue a UTF-8 text frame; a detached writer task drains the queue to
// the socket. Overflow drops the frame (logged by the caller) rather than
// blocking the component.
type OutputStream struct {
	frames chan []byte
	done   chan struct{}
}

func newOutputStream() *OutputStream {
	return &OutputStream{frames: make(chan []byte, queueCapacity), done: make(chan struct{})}
}

// Write enqueues data as one text frame. It never blocks: if the queue is
// full, the frame is dropped and ok is false so the caller can log a
// warning under the drop-and-log overflow policy.
func (o *OutputStream) Write(data []byte) (ok bool) {
	select {
	case o.frames <- data:
		return true
	default:
		return false
	}
}

// Done reports when the writer task has exited, at which point the stream
// is considered closed: the stream is reported closed only when the
// queue's consumer task exits.
func (o *OutputStream) Done() <-chan struct{} { return o.done }

// Close stops the writer task once its queue drains. Safe to call once;
// writing after Close panics, matching a dropped output-stream resource
// never being written to again.
func (o *OutputStream) Close() { close(o.frames) }

func (o *OutputStream) runWriter(conn *websocket.Conn) {
	defer close(o.done)
	for frame := range o.frames {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// InputStream is the component-facing input-stream resource, backed by the
// shared streamadapter.Stream (the same bounded-queue/terminal-error/
// buffered-remainder adapter ai/tensor.Stream uses).
type InputStream struct {
	inner *streamadapter.Stream
}

// Read pulls up to maxLen bytes of inbound message data.
func (s *InputStream) Read(maxLen int) ([]byte, error) { return s.inner.Read(maxLen) }

// Done reports when the reader task has terminated the stream.
func (s *InputStream) Done() <-chan struct{} { return s.inner.Done() }

func newInputStream() *InputStream {
	return &InputStream{inner: streamadapter.New(queueCapacity)}
}

func (s *InputStream) runReader(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			s.inner.CloseWithError(err)
			return
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			if !s.inner.Push(data) {
				return
			}
		case websocket.CloseMessage:
			s.inner.CloseWithError(nil)
			return
		default:
			// Ping/Pong/other control frames are skipped.
		}
	}
}

// Bridge is the pair of resources pushed into the component's Store on
// upgrade.
type Bridge struct {
	Input  *InputStream
	Output *OutputStream
}

// Upgrade upgrades w/r to a WebSocket connection and starts the detached
// reader/writer tasks, returning the Bridge ready to hand to the
// component's websocket::handle(input, output) export.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Bridge, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, herr.NewWithCause(herr.CapWebSocket, herr.KindRuntimeError, "", "websocket upgrade failed", err)
	}

	input := newInputStream()
	output := newOutputStream()

	go input.runReader(conn)
	go output.runWriter(conn)
	go func() {
		// The socket is closed once both detached tasks finish, matching a
		// single underlying connection shared by a read-half and write-half.
		<-input.Done()
		<-output.Done()
		conn.Close()
	}()

	return &Bridge{Input: input, Output: output}, nil
}
