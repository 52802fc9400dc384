// Command dartidx builds and queries a double-array trie index from the
// command line, as a thin front door over the dartidx library.
package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var gitCommitSHA = ""

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-interrupt:
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "dartidx",
		Version:     gitCommitSHA,
		Description: "Build and query a static, byte-indexed double-array trie dictionary.",
		Flags:       NewKlogFlagSet(),
		Commands: []*cli.Command{
			newCmd_Build(),
			newCmd_Get(),
			newCmd_Prefix(),
			newCmd_Info(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}

// codecFlag is shared by every subcommand that opens or writes an index.
var codecFlag = &cli.StringFlag{
	Name:    "codec",
	Usage:   "value codec: bytes (opaque byte values) or varint (uint64 values)",
	Value:   "bytes",
	EnvVars: []string{"DARTIDX_CODEC"},
}
