package asyncx_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"code.hybscloud.com/xproc/asyncx"
	"code.hybscloud.com/xproc/bootstrap"
)

func TestMain(m *testing.M) {
	bootstrap.Main()
	os.Exit(m.Run())
}

func init() {
	bootstrap.Register("asyncx-echo-exit", func(_ context.Context, n int32) {
		os.Exit(int(n))
	})
}

func TestSenderReceiver_SendRecvOverReactor(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := asyncx.NewReactor()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	tx, rx, err := asyncx.NewPair[string](r)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}

	go func() {
		if err := tx.Send(ctx, "hello"); err != nil {
			t.Errorf("send: %v", err)
		}
	}()

	got, err := rx.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q want %q", got, "hello")
	}
	cancel()
	<-done
}

func TestReceiver_RecvCanceledBeforeSendReturnsCtxErr(t *testing.T) {
	t.Parallel()
	runCtx, runCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer runCancel()

	r := asyncx.NewReactor()
	go r.Run(runCtx)

	_, rx, err := asyncx.NewPair[int32](r)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer recvCancel()

	_, err = rx.Recv(recvCtx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestDuplex_RequestRoundTripsThroughReactor(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := asyncx.NewReactor()
	go r.Run(ctx)

	client, server, err := asyncx.NewDuplexPair[int32, int32](r)
	if err != nil {
		t.Fatalf("NewDuplexPair: %v", err)
	}

	go func() {
		n, err := server.Recv(ctx)
		if err != nil {
			t.Errorf("server recv: %v", err)
			return
		}
		if err := server.Send(ctx, n*2); err != nil {
			t.Errorf("server send: %v", err)
		}
	}()

	reply, err := client.Request(ctx, int32(21))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if reply != 42 {
		t.Fatalf("reply = %d want 42", reply)
	}
}

// TestInterleavedChildrenAndChannels spawns two children and, concurrently,
// exercises an asyncx channel, confirming that waiting on one kind of thing
// (a child's exit) does not stall progress on the other (a channel recv)
// when both are driven from goroutines sharing one reactor.
func TestInterleavedChildrenAndChannels(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := asyncx.NewReactor()
	go r.Run(ctx)

	tx, rx, err := asyncx.NewPair[int32](r)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}

	childA, err := bootstrap.Spawn(ctx, "asyncx-echo-exit", int32(7))
	if err != nil {
		t.Fatalf("spawn a: %v", err)
	}
	childB, err := bootstrap.Spawn(ctx, "asyncx-echo-exit", int32(9))
	if err != nil {
		t.Fatalf("spawn b: %v", err)
	}

	recvDone := make(chan int32, 1)
	go func() {
		v, err := rx.Recv(ctx)
		if err != nil {
			t.Errorf("recv: %v", err)
			return
		}
		recvDone <- v
	}()

	codeA, err := asyncx.AwaitChild(ctx, childA)
	if err != nil {
		t.Fatalf("await a: %v", err)
	}
	if codeA != 7 {
		t.Fatalf("codeA = %d want 7", codeA)
	}

	if err := tx.Send(ctx, int32(99)); err != nil {
		t.Fatalf("send: %v", err)
	}

	codeB, err := asyncx.AwaitChild(ctx, childB)
	if err != nil {
		t.Fatalf("await b: %v", err)
	}
	if codeB != 9 {
		t.Fatalf("codeB = %d want 9", codeB)
	}

	select {
	case v := <-recvDone:
		if v != 99 {
			t.Fatalf("recv = %d want 99", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recv")
	}
}
