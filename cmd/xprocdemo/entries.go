package main

import (
	"context"
	"os"

	"code.hybscloud.com/xproc/bootstrap"
	"code.hybscloud.com/xproc/channel"
	"code.hybscloud.com/xproc/transport"
	"code.hybscloud.com/xproc/xproclog"
)

// AddArgs is add's argument tuple: the numbers to sum, plus a reply channel
// a result-returning entry needs since bootstrap.Register's invoked function
// has no return value of its own — the result travels back over a channel
// endpoint carried inside the argument tuple, the same pattern withChannel
// uses for ordinary data.
type AddArgs struct {
	Nums  []int32
	Reply channel.Sender[int32]
}

// PingPongArgs carries the one duplex pingpong speaks over: it sends int32
// sums back for every []int32 batch it receives.
type PingPongArgs struct {
	Link channel.Duplex[int32, []int32]
}

// WithChannelArgs demonstrates an argument tuple embedding a channel
// endpoint distinct from the bootstrap endpoint itself.
type WithChannelArgs struct {
	Ready channel.Sender[string]
	Work  channel.Receiver[[]byte]
}

func init() {
	bootstrap.Register("add", func(_ context.Context, a AddArgs) {
		var sum int32
		for _, n := range a.Nums {
			sum += n
		}
		if err := a.Reply.Send(sum); err != nil {
			xproclog.L().Error("add_reply_failed", "error", err)
			os.Exit(1)
		}
	})

	bootstrap.Register("pingpong", func(_ context.Context, a PingPongArgs) {
		for {
			n, err := a.Link.Recv()
			if err != nil {
				return
			}
			var sum int32
			for _, v := range n {
				sum += v
			}
			if err := a.Link.Send(sum); err != nil {
				return
			}
		}
	})

	bootstrap.Register("writeFile", func(_ context.Context, f transport.FileHandle) {
		file := os.NewFile(uintptr(f.Fd()), "xprocdemo-writefile")
		defer file.Close()
		if _, err := file.WriteString("ok"); err != nil {
			xproclog.L().Error("write_file_failed", "error", err)
			os.Exit(1)
		}
	})

	bootstrap.Register("withChannel", func(_ context.Context, a WithChannelArgs) {
		if err := a.Ready.Send("ready"); err != nil {
			os.Exit(1)
		}
		data, err := a.Work.Recv()
		if err != nil {
			os.Exit(1)
		}
		xproclog.L().Debug("with_channel_work_received", "bytes", len(data))
	})
}
