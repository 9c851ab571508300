// Package asyncx adapts channel and bootstrap operations to cooperative,
// single-threaded suspension instead of blocking an OS thread per pending
// operation. A Reactor polls every registered endpoint's file descriptor in
// one syscall and wakes exactly the goroutine whose descriptor became
// ready; Sender, Receiver and Duplex retry their non-blocking transport
// call each time they wake after it returned iox.ErrWouldBlock.
package asyncx

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/xproc/bootstrap"
	"code.hybscloud.com/xproc/internal/wire"
	"code.hybscloud.com/xproc/transport"
)

// pollIdle is how long Run waits before re-checking for newly registered
// waiters when none existed at the start of a cycle.
const pollIdle = 2 * time.Millisecond

// pollTimeoutMillis bounds a single unix.Poll call, in milliseconds, so Run keeps noticing ctx
// cancellation and newly registered waiters even when nothing is ready.
const pollTimeoutMillis = 50

// Reactor drives every pending Send/Recv registered against it from one
// goroutine's Run loop. Exactly one goroutine should call Run on a given
// Reactor; any number of goroutines may call Sender.Send/Receiver.Recv
// concurrently against endpoints registered with it.
type Reactor struct {
	mu      sync.Mutex
	waiters map[waitKey]chan struct{}
}

type waitKey struct {
	fd     int
	events int16
}

// NewReactor returns an idle Reactor. Call Run to start polling.
func NewReactor() *Reactor {
	return &Reactor{waiters: map[waitKey]chan struct{}{}}
}

// Run polls registered endpoints until ctx is done, waking each waiter
// whose descriptor becomes ready for its registered event. It returns
// ctx.Err() when ctx is done.
func (r *Reactor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.mu.Lock()
		if len(r.waiters) == 0 {
			r.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollIdle):
				continue
			}
		}
		pfds := make([]unix.PollFd, 0, len(r.waiters))
		keys := make([]waitKey, 0, len(r.waiters))
		for k := range r.waiters {
			pfds = append(pfds, unix.PollFd{Fd: int32(k.fd), Events: k.events})
			keys = append(keys, k)
		}
		r.mu.Unlock()

		n, err := unix.Poll(pfds, pollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		r.mu.Lock()
		for i, p := range pfds {
			if p.Revents == 0 {
				continue
			}
			if ch, ok := r.waiters[keys[i]]; ok {
				close(ch)
				delete(r.waiters, keys[i])
			}
		}
		r.mu.Unlock()
	}
}

// wait blocks until fd is ready for events, or ctx is done.
func (r *Reactor) wait(ctx context.Context, fd int, events int16) error {
	key := waitKey{fd: fd, events: events}
	r.mu.Lock()
	ch, ok := r.waiters[key]
	if !ok {
		ch = make(chan struct{})
		r.waiters[key] = ch
	}
	r.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func marshalInto(v any) (*wire.Frame, error) { return wire.Marshal(v) }

// Sender is the send-only half of an asyncx channel carrying values of
// type T.
type Sender[T any] struct {
	ep transport.Endpoint
	r  *Reactor
}

// Receiver is the receive-only half of an asyncx channel carrying values of
// type T.
type Receiver[T any] struct {
	ep transport.Endpoint
	r  *Reactor
}

// Duplex carries values of type Tx outbound and Rx inbound over one
// endpoint registered with a Reactor.
type Duplex[Tx, Rx any] struct {
	ep transport.Endpoint
	r  *Reactor
}

// NewPair creates a fresh transport connection, switches both ends to
// non-blocking mode, and returns its typed halves bound to r.
func NewPair[T any](r *Reactor) (Sender[T], Receiver[T], error) {
	a, b, err := transport.NewPair()
	if err != nil {
		return Sender[T]{}, Receiver[T]{}, err
	}
	if err := a.SetNonblock(true); err != nil {
		return Sender[T]{}, Receiver[T]{}, err
	}
	if err := b.SetNonblock(true); err != nil {
		return Sender[T]{}, Receiver[T]{}, err
	}
	return Sender[T]{ep: a, r: r}, Receiver[T]{ep: b, r: r}, nil
}

// NewDuplexPair creates a fresh transport connection and returns its two
// ends as mirror-image asyncx duplexes, both in non-blocking mode.
func NewDuplexPair[A, B any](r *Reactor) (Duplex[A, B], Duplex[B, A], error) {
	a, b, err := transport.NewPair()
	if err != nil {
		return Duplex[A, B]{}, Duplex[B, A]{}, err
	}
	if err := a.SetNonblock(true); err != nil {
		return Duplex[A, B]{}, Duplex[B, A]{}, err
	}
	if err := b.SetNonblock(true); err != nil {
		return Duplex[A, B]{}, Duplex[B, A]{}, err
	}
	return Duplex[A, B]{ep: a, r: r}, Duplex[B, A]{ep: b, r: r}, nil
}

// Send delivers v to the peer's next Recv, suspending the calling
// goroutine (cooperatively, via r) instead of blocking the OS thread while
// the socket's send buffer is full.
func (s Sender[T]) Send(ctx context.Context, v T) error {
	fr, err := marshalInto(v)
	if err != nil {
		return err
	}
	for {
		err := s.ep.Send(fr.Payload, fr.Handles)
		if err == nil {
			return nil
		}
		if err != iox.ErrWouldBlock {
			return err
		}
		if werr := s.r.wait(ctx, s.ep.Fd(), unix.POLLOUT); werr != nil {
			return werr
		}
	}
}

// Recv suspends the calling goroutine until the peer's next Send arrives.
func (rc Receiver[T]) Recv(ctx context.Context) (T, error) {
	var v T
	for {
		payload, handles, err := rc.ep.Recv()
		if err == nil {
			uerr := wire.Unmarshal(&wire.Frame{Payload: payload, Handles: handles}, &v)
			return v, uerr
		}
		if err != iox.ErrWouldBlock {
			return v, err
		}
		if werr := rc.r.wait(ctx, rc.ep.Fd(), unix.POLLIN); werr != nil {
			return v, werr
		}
	}
}

// Send delivers v to the peer's next Recv.
func (d Duplex[Tx, Rx]) Send(ctx context.Context, v Tx) error {
	fr, err := marshalInto(v)
	if err != nil {
		return err
	}
	for {
		err := d.ep.Send(fr.Payload, fr.Handles)
		if err == nil {
			return nil
		}
		if err != iox.ErrWouldBlock {
			return err
		}
		if werr := d.r.wait(ctx, d.ep.Fd(), unix.POLLOUT); werr != nil {
			return werr
		}
	}
}

// Recv suspends the calling goroutine until the peer's next Send arrives.
func (d Duplex[Tx, Rx]) Recv(ctx context.Context) (Rx, error) {
	var v Rx
	for {
		payload, handles, err := d.ep.Recv()
		if err == nil {
			uerr := wire.Unmarshal(&wire.Frame{Payload: payload, Handles: handles}, &v)
			return v, uerr
		}
		if err != iox.ErrWouldBlock {
			return v, err
		}
		if werr := d.r.wait(ctx, d.ep.Fd(), unix.POLLIN); werr != nil {
			return v, werr
		}
	}
}

// Request sends v, then suspends for the single reply the peer sends back.
func (d Duplex[Tx, Rx]) Request(ctx context.Context, v Tx) (Rx, error) {
	if err := d.Send(ctx, v); err != nil {
		var zero Rx
		return zero, err
	}
	return d.Recv(ctx)
}

// AwaitChild suspends the calling goroutine until child exits, the
// cooperative counterpart of the other two suspension points (channel
// send/recv) for the third kind of thing asyncx code waits on.
func AwaitChild(ctx context.Context, child *bootstrap.Child) (int, error) {
	return child.Wait(ctx)
}
