// Package bootstrap implements the subprocess bootstrap protocol: an entry
// registry populated once at program startup, Spawn to re-exec the current
// program image under a registered entry, and Main to let a freshly exec'd
// child recognize its role and invoke that entry before the program's own
// main runs.
package bootstrap

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/xproc/internal/wire"
	"code.hybscloud.com/xproc/transport"
	"code.hybscloud.com/xproc/xerr"
	"code.hybscloud.com/xproc/xproclog"
	"code.hybscloud.com/xproc/xprocmetrics"
)

// sentinel marks argv[1] of a re-exec'd child. Chosen to be improbable in
// a user command line.
const sentinel = "--xproc-bootstrap-7f3a1c9e"

// Exit codes a bootstrapped entry's process terminates with.
const (
	ExitOK           = 0
	ExitPanic        = 1
	ExitDecodeFailed = 2
)

type entry struct {
	decode func(fr *wire.Frame) (any, error)
	invoke func(ctx context.Context, args any)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]entry{}
	sealed     atomic.Bool
)

// Register declares an entry point under id: a decoder for its argument
// tuple and the body to invoke once decoded. Register must run before the
// first Spawn call in the process — Spawn seals the registry on first use,
// and any Register after that panics, as does registering a duplicate id.
func Register[A any](id string, fn func(ctx context.Context, args A)) {
	if sealed.Load() {
		panic("bootstrap: Register(" + id + ") called after the registry was sealed by Spawn")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[id]; exists {
		panic("bootstrap: duplicate entry id " + id)
	}
	registry[id] = entry{
		decode: func(fr *wire.Frame) (any, error) {
			var a A
			if err := wire.Unmarshal(fr, &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		invoke: func(ctx context.Context, args any) {
			fn(ctx, args.(A))
		},
	}
}

// Child is the parent's handle on a spawned process.
type Child struct {
	cmd *exec.Cmd
	ep  transport.Endpoint
	id  string
}

// PID returns the child's OS process identifier.
func (c *Child) PID() int { return c.cmd.Process.Pid }

// Endpoint returns the parent-side bootstrap endpoint. After the initial
// argument tuple has been sent, the child reads nothing more from its side
// and the entry body has no access to it, so further traffic — if the
// argument tuple carried a channel endpoint — flows over channels
// reconstructed from that tuple, not over this endpoint.
func (c *Child) Endpoint() transport.Endpoint { return c.ep }

// Wait blocks until the child exits or ctx is done, returning its exit
// code. Canceling ctx does not kill the child; it only stops waiting.
func (c *Child) Wait(ctx context.Context) (int, error) {
	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case err := <-done:
		if err == nil {
			xprocmetrics.ChildExitCodeTotal.WithLabelValues(c.id, strconv.Itoa(ExitOK)).Inc()
			return ExitOK, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			xprocmetrics.ChildExitCodeTotal.WithLabelValues(c.id, strconv.Itoa(code)).Inc()
			return code, nil
		}
		return -1, errors.Wrap(err, "bootstrap: wait failed")
	}
}

// Spawn launches a new process executing the current program image,
// selects entry id in it, and carries args across as that entry's argument
// tuple. Any handles reachable inside args are made child-inheritable and
// their child-side descriptor numbers are passed on the command line; the
// serialized byte buffer itself travels over the bootstrap channel, sent
// after the child has started.
func Spawn[A any](ctx context.Context, id string, args A) (*Child, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sealed.Store(true)

	fail := func(err error) (*Child, error) {
		xprocmetrics.SpawnFailuresTotal.WithLabelValues(id).Inc()
		return nil, err
	}

	fr, err := wire.Marshal(args)
	if err != nil {
		return fail(errors.Wrap(err, "bootstrap: marshal argument tuple"))
	}

	parentEnd, childEnd, err := transport.NewPair()
	if err != nil {
		return fail(xerr.SpawnFailed)
	}

	exe, err := os.Executable()
	if err != nil {
		parentEnd.Close()
		childEnd.Close()
		return fail(errors.Wrap(xerr.NoExecutable, err.Error()))
	}

	const childBootstrapFd = 3 // first ExtraFiles slot, after stdin/stdout/stderr
	extraFiles := []*os.File{os.NewFile(uintptr(childEnd.Fd()), "xproc-bootstrap")}
	argv := []string{sentinel, id, strconv.Itoa(childBootstrapFd)}
	for i, h := range fr.Handles {
		extraFiles = append(extraFiles, os.NewFile(uintptr(h), "xproc-handle"))
		argv = append(argv, strconv.Itoa(childBootstrapFd+1+i))
	}

	cmd := exec.Command(exe, argv...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.ExtraFiles = extraFiles

	if err := cmd.Start(); err != nil {
		for _, f := range extraFiles {
			f.Close()
		}
		parentEnd.Close()
		return fail(xerr.SpawnFailed)
	}

	// The child now has its own duplicated copies; the parent's are no
	// longer needed. childEnd.Fd() is closed through its *os.File wrapper
	// above, so childEnd itself must not be closed separately.
	for _, f := range extraFiles {
		f.Close()
	}

	if err := parentEnd.Send(fr.Payload, nil); err != nil {
		return fail(errors.Wrap(err, "bootstrap: send argument tuple"))
	}

	xprocmetrics.SpawnsTotal.WithLabelValues(id).Inc()
	xproclog.L().Debug("bootstrap_spawn", "entry", id, "pid", cmd.Process.Pid)
	return &Child{cmd: cmd, ep: parentEnd, id: id}, nil
}

// Main inspects the process's command line for the bootstrap sentinel. If
// absent, it returns immediately and the caller's own main runs unchanged.
// If present, it reconstructs the bootstrap endpoint and argument tuple,
// invokes the selected entry, and exits the process — it never returns in
// that case.
func Main() {
	if len(os.Args) < 4 || os.Args[1] != sentinel {
		return
	}
	id := os.Args[2]
	bootstrapFd, err := strconv.Atoi(os.Args[3])
	if err != nil {
		os.Exit(ExitDecodeFailed)
	}

	handleArgs := os.Args[4:]
	handles := make([]wire.Handle, len(handleArgs))
	for i, s := range handleArgs {
		n, err := strconv.Atoi(s)
		if err != nil {
			os.Exit(ExitDecodeFailed)
		}
		handles[i] = wire.Handle(n)
	}

	ep := transport.NewEndpoint(bootstrapFd)
	payload, _, err := ep.Recv()
	if err != nil {
		os.Exit(ExitDecodeFailed)
	}

	registryMu.RLock()
	e, ok := registry[id]
	registryMu.RUnlock()
	if !ok {
		xprocmetrics.DecodeFailuresTotal.WithLabelValues("unknown_entry").Inc()
		os.Exit(ExitDecodeFailed)
	}

	args, err := e.decode(&wire.Frame{Payload: payload, Handles: handles})
	if err != nil {
		xprocmetrics.DecodeFailuresTotal.WithLabelValues(err.Error()).Inc()
		os.Exit(ExitDecodeFailed)
	}

	func() {
		defer func() {
			if recover() != nil {
				os.Exit(ExitPanic)
			}
		}()
		e.invoke(context.Background(), args)
	}()
	os.Exit(ExitOK)
}

// WaitAll waits for every child to exit, returning an error identifying
// the first one that either failed to wait or exited with a nonzero code.
func WaitAll(ctx context.Context, children ...*Child) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range children {
		g.Go(func() error {
			code, err := c.Wait(gctx)
			if err != nil {
				return err
			}
			if code != ExitOK {
				return errors.Errorf("bootstrap: child pid %d exited with code %d", c.PID(), code)
			}
			return nil
		})
	}
	return g.Wait()
}
