// Package transport defines the duplex message pipe an interactive session
// runs over, and an in-memory implementation for tests.
package transport

import (
	"io"
	"sync"
)

// Transport carries whole frames between the client and the service. It is
// message oriented: one WriteMsg produces exactly one frame on the wire and
// one ReadMsg consumes exactly one. Implementations must support one
// concurrent reader and one concurrent writer.
type Transport interface {
	// ReadMsg blocks until the next inbound frame is available.
	ReadMsg() ([]byte, error)

	// WriteMsg sends one frame.
	WriteMsg(p []byte) error

	Close() error
}

// TestTransport mocks the underlying duplex connection. It allows tests to
// queue up frames the "server" sends and to inspect frames the client sent.
type TestTransport struct {
	// OnWrite, if set, is invoked for every frame the client writes. Tests
	// use it to script request/response exchanges.
	OnWrite func(p []byte)

	mu      sync.Mutex
	outputs [][]byte

	inputs    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func NewTestTransport() *TestTransport {
	return &TestTransport{
		inputs: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (t *TestTransport) ReadMsg() ([]byte, error) {
	select {
	case msg := <-t.inputs:
		return msg, nil
	case <-t.closed:
		return nil, io.EOF
	}
}

func (t *TestTransport) WriteMsg(p []byte) error {
	select {
	case <-t.closed:
		return io.ErrClosedPipe
	default:
	}

	t.mu.Lock()
	t.outputs = append(t.outputs, p)
	t.mu.Unlock()

	if t.OnWrite != nil {
		t.OnWrite(p)
	}
	return nil
}

func (t *TestTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// AddResponse queues a frame for the client to read.
func (t *TestTransport) AddResponse(p []byte) {
	select {
	case t.inputs <- p:
	case <-t.closed:
	}
}

// Sent returns a copy of every frame the client has written so far.
func (t *TestTransport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.outputs))
	copy(out, t.outputs)
	return out
}
