package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/runbox/runbox/api"
	"github.com/runbox/runbox/internal/gatherer/termgath"
	"github.com/urfave/cli/v3"
)

// oneShotLimits converts the human-scale flag values into the byte
// budgets of an execution request.
func oneShotLimits(timeoutSec int, memoryMb int, outputKb int) api.Limits {
	return api.Limits{
		TimeoutSec:     timeoutSec,
		MaxMemoryBytes: int64(memoryMb) << 20,
		MaxOutputBytes: int64(outputKb) << 10,
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute a single file and print the result",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "runtime", Required: true, Usage: "runtime identifier, e.g. python3"},
			&cli.StringFlag{Name: "runtimes", Usage: "TOML file overlaying the builtin runtime table"},
			&cli.StringFlag{Name: "stdin", Usage: "file piped to the process on stdin"},
			&cli.IntFlag{Name: "timeout", Value: 10, Usage: "wall clock budget in seconds"},
			&cli.IntFlag{Name: "memory-mb", Value: 256, Usage: "memory budget in MiB"},
			&cli.IntFlag{Name: "output-kb", Value: 1024, Usage: "combined output budget in KiB"},
			&cli.BoolFlag{Name: "net", Usage: "allow outbound network access"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one file argument")
			}

			code, err := os.ReadFile(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("failed to read code file: %w", err)
			}

			h, err := newHost(cmd.String("runtimes"))
			if err != nil {
				return err
			}

			req := api.ExecReq{
				ExecUuid: uuid.NewString(),
				Code:     string(code),
				Runtime:  cmd.String("runtime"),
				Limits:   oneShotLimits(cmd.Int("timeout"), cmd.Int("memory-mb"), cmd.Int("output-kb")),
				Network:  cmd.Bool("net"),
			}
			if path := cmd.String("stdin"); path != "" {
				in, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read stdin file: %w", err)
				}
				input := string(in)
				req.Input = &input
			}

			res := h.runner.Run(ctx, req, termgath.New())
			if res.Status != api.StatusOk {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}
