// Package tensor defines the Tensor and Tensor-Stream data model shared by
// every AI Capability backend.
package tensor

import (
	"github.com/hayride-dev/hayride/streamadapter"
)

// Type enumerates the tensor element types the engine's ML backends
// exchange with components.
type Type string

const (
	FP16 Type = "fp16"
	FP32 Type = "fp32"
	FP64 Type = "fp64"
	BF16 Type = "bf16"
	U8   Type = "u8"
	I32  Type = "i32"
	I64  Type = "i64"
)

// Tensor is an opaque byte buffer tagged with a shape and element type. The
// backend validates shape on consumption; product(Dimensions) * sizeof(Type)
// is not required to equal len(Data) up front.
type Tensor struct {
	Dimensions []uint32
	Type       Type
	Data       []byte
}

// NewText wraps s as a U8 tensor with shape [1], the shape sync compute
// returns its result in; Data holds the bytes of s.
func NewText(s string) Tensor {
	return Tensor{Dimensions: []uint32{1}, Type: U8, Data: []byte(s)}
}

// Stream is a Tensor-Stream: a single producer task writes decoded token
// bytes, paired with the tensor shape/type the stream as a whole
// represents, wrapping the shared streamadapter.Stream.
type Stream struct {
	Dimensions []uint32
	Type       Type
	inner      *streamadapter.Stream
}

// NewStream constructs a Tensor-Stream of the given shape/type backed by a
// bounded queue of the given capacity.
func NewStream(dims []uint32, ty Type, capacity int) *Stream {
	return &Stream{Dimensions: dims, Type: ty, inner: streamadapter.New(capacity)}
}

// Push enqueues a decoded chunk; see streamadapter.Stream.Push.
func (s *Stream) Push(chunk []byte) bool { return s.inner.Push(chunk) }

// CloseWithError terminates the stream, optionally with a terminal error.
func (s *Stream) CloseWithError(err error) { s.inner.CloseWithError(err) }

// Read pulls up to maxLen bytes of decoded output.
func (s *Stream) Read(maxLen int) ([]byte, error) { return s.inner.Read(maxLen) }

// Done reports when the stream has been closed.
func (s *Stream) Done() <-chan struct{} { return s.inner.Done() }
