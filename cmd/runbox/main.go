package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/runbox/runbox/internal/sandbox"
	"github.com/urfave/cli/v3"
)

func main() {
	// must run first: a re-executed confinement stage never reaches the
	// command tree
	sandbox.Init()

	slog.SetDefault(newLogger(os.Stderr))

	root := &cli.Command{
		Name:  "runbox",
		Usage: "sandboxed code execution host",
		Commands: []*cli.Command{
			serveCmd(),
			runCmd(),
			healthCmd(),
			behaveCmd(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
