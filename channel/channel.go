// Package channel implements typed single-producer/single-consumer
// channels over a transport.Endpoint: Sender[T] and Receiver[T] for
// one-directional flow, and Duplex[Tx, Rx] for request/response or
// bidirectional use. Every endpoint type is itself transmittable (it
// implements wire.Marshaler/Unmarshaler), so a channel half can be handed
// to a spawned child the same way any other value can.
package channel

import (
	"sync"

	"code.hybscloud.com/xproc/internal/wire"
	"code.hybscloud.com/xproc/transport"
	"code.hybscloud.com/xproc/xerr"
)

// core is the shared, mutable state behind every endpoint value. Endpoint
// types hold a pointer to one so that marshaling (which must hand the
// underlying transport.Endpoint's file descriptor to the wire and mark the
// local value moved) is visible through every copy of the Go value.
type core struct {
	mu     sync.Mutex
	ep     transport.Endpoint
	closed bool
	moved  bool
}

func newCore(ep transport.Endpoint) *core { return &core{ep: ep} }

func (c *core) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.moved {
		return xerr.Closed
	}
	fr, err := wire.Marshal(v)
	if err != nil {
		return err
	}
	return c.ep.Send(fr.Payload, fr.Handles)
}

func (c *core) recv(ptr any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.moved {
		return xerr.Closed
	}
	payload, handles, err := c.ep.Recv()
	if err != nil {
		return err
	}
	return wire.Unmarshal(&wire.Frame{Payload: payload, Handles: handles}, ptr)
}

func (c *core) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.moved {
		return nil
	}
	c.closed = true
	return c.ep.Close()
}

// markMoved hands the core's endpoint fd to the wire as a single handle and
// marks the core unusable locally: ownership of the fd passes to whoever
// reads the frame.
func (c *core) markMoved(w *wire.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.moved {
		return xerr.Closed
	}
	w.PutHandle(wire.Handle(c.ep.Fd()))
	c.moved = true
	return nil
}

func coreFromHandle(c *wire.Cursor) (*core, error) {
	h, err := c.GetHandle()
	if err != nil {
		return nil, err
	}
	return newCore(transport.NewEndpoint(int(h))), nil
}

// Sender is the send-only half of a channel carrying values of type T.
type Sender[T any] struct{ c *core }

// Receiver is the receive-only half of a channel carrying values of type T.
type Receiver[T any] struct{ c *core }

// Duplex carries values of type Tx outbound and Rx inbound over one
// underlying connection: a single socket used for both directions.
type Duplex[Tx, Rx any] struct{ c *core }

// NewPair creates a fresh transport connection and returns its two typed
// halves: a Sender[T] and the matching Receiver[T].
func NewPair[T any]() (Sender[T], Receiver[T], error) {
	a, b, err := transport.NewPair()
	if err != nil {
		return Sender[T]{}, Receiver[T]{}, err
	}
	return Sender[T]{c: newCore(a)}, Receiver[T]{c: newCore(b)}, nil
}

// NewDuplexPair creates a fresh transport connection and returns its two
// ends as mirror-image duplexes: one sends A and receives B, the other
// sends B and receives A.
func NewDuplexPair[A, B any]() (Duplex[A, B], Duplex[B, A], error) {
	a, b, err := transport.NewPair()
	if err != nil {
		return Duplex[A, B]{}, Duplex[B, A]{}, err
	}
	return Duplex[A, B]{c: newCore(a)}, Duplex[B, A]{c: newCore(b)}, nil
}

// Send delivers v to the peer's next Recv.
func (s Sender[T]) Send(v T) error { return s.c.send(v) }

// Close releases the underlying connection. Safe to call more than once.
func (s Sender[T]) Close() error { return s.c.close() }

func (s Sender[T]) MarshalWire(w *wire.Writer) error { return s.c.markMoved(w) }

func (s *Sender[T]) UnmarshalWire(c *wire.Cursor) error {
	nc, err := coreFromHandle(c)
	if err != nil {
		return err
	}
	s.c = nc
	return nil
}

// Recv blocks for the next value sent by the peer. It returns
// xerr.EndOfStream once the peer has closed and no further values remain.
func (r Receiver[T]) Recv() (T, error) {
	var v T
	err := r.c.recv(&v)
	return v, err
}

// Close releases the underlying connection. Safe to call more than once.
func (r Receiver[T]) Close() error { return r.c.close() }

func (r Receiver[T]) MarshalWire(w *wire.Writer) error { return r.c.markMoved(w) }

func (r *Receiver[T]) UnmarshalWire(c *wire.Cursor) error {
	nc, err := coreFromHandle(c)
	if err != nil {
		return err
	}
	r.c = nc
	return nil
}

// Send delivers v to the peer's next Recv.
func (d Duplex[Tx, Rx]) Send(v Tx) error { return d.c.send(v) }

// Recv blocks for the next value sent by the peer.
func (d Duplex[Tx, Rx]) Recv() (Rx, error) {
	var v Rx
	err := d.c.recv(&v)
	return v, err
}

// Request sends v, then blocks for the single reply the peer sends back.
// Per the channel protocol, the send and the receive are synchronous: the
// reply is not awaited concurrently with anything else on this duplex.
func (d Duplex[Tx, Rx]) Request(v Tx) (Rx, error) {
	if err := d.Send(v); err != nil {
		var zero Rx
		return zero, err
	}
	return d.Recv()
}

// Close releases the underlying connection. Safe to call more than once.
func (d Duplex[Tx, Rx]) Close() error { return d.c.close() }

func (d Duplex[Tx, Rx]) MarshalWire(w *wire.Writer) error { return d.c.markMoved(w) }

func (d *Duplex[Tx, Rx]) UnmarshalWire(c *wire.Cursor) error {
	nc, err := coreFromHandle(c)
	if err != nil {
		return err
	}
	d.c = nc
	return nil
}
