package main

import (
	"context"

	"code.hybscloud.com/xproc/bootstrap"
	"code.hybscloud.com/xproc/channel"
)

// EchoArgs[T] carries one value to echo back, plus the reply channel to
// echo it over.
type EchoArgs[T any] struct {
	V     T
	Reply channel.Sender[T]
}

// RegisterEcho registers a one-shot "receive a T, send the same T back"
// entry under id — Go generics forbid a single runtime entry id spanning
// every T, so each concrete T a program wants to echo gets its own id,
// registered by calling RegisterEcho[T](id) once at init time. Grounded in
// the same "run and collect result" one-shot shape spec.md's bootstrap
// section describes for any single-use child.
func RegisterEcho[T any](id string) {
	bootstrap.Register(id, func(_ context.Context, a EchoArgs[T]) {
		_ = a.Reply.Send(a.V)
	})
}

func init() {
	RegisterEcho[int32]("echo-int32")
	RegisterEcho[string]("echo-string")
	RegisterEcho[[]byte]("echo-bytes")
}
