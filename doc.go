// Package xproc re-exports the handful of names most callers need to spawn
// a typed subprocess and exchange values with it, so a simple program can
// import one package instead of four. Anything beyond entry registration,
// spawning and waiting lives in the subpackages directly: channel for
// Sender/Receiver/Duplex, transport for the raw handle-carrying connection,
// asyncx for the cooperative adaptation.
package xproc

import (
	"context"

	"code.hybscloud.com/xproc/bootstrap"
)

// Register declares a subprocess entry point under id. It must run before
// the first Spawn call in the process.
func Register[A any](id string, fn func(ctx context.Context, args A)) {
	bootstrap.Register(id, fn)
}

// Spawn re-execs the current program image under the entry registered as
// id, carrying args across as that entry's argument tuple.
func Spawn[A any](ctx context.Context, id string, args A) (*bootstrap.Child, error) {
	return bootstrap.Spawn(ctx, id, args)
}

// Main lets a re-exec'd child recognize its role and run its entry point.
// Every program using this package must call it first in main, before any
// other startup work: it does not return if the process is a bootstrapped
// child.
func Main() {
	bootstrap.Main()
}
