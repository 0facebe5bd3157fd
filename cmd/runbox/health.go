package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/runbox/runbox/api"
	"github.com/runbox/runbox/internal/gatherer"
	"github.com/urfave/cli/v3"
)

type feedbackRow struct {
	unit    string
	health  int // 0 - OK, 1 - Warning, 2 - Error
	message string
}

func healthCmd() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "verify sandbox enforcement and probe every runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "runtimes", Usage: "TOML file overlaying the builtin runtime table"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			h, err := newHost(cmd.String("runtimes"))
			if err != nil {
				return err
			}

			feedback := make([]feedbackRow, 0)

			sandboxRow := ensureSandboxOk(h)
			feedback = append(feedback, sandboxRow)

			if sandboxRow.health != 2 {
				feedback = append(feedback, probeRuntimes(ctx, h)...)
			}

			outputFeedback(feedback)

			for _, row := range feedback {
				if row.health == 2 {
					return cli.Exit("", 1)
				}
			}
			return nil
		},
	}
}

func ensureSandboxOk(h *host) feedbackRow {
	if err := h.sb.Verify(); err != nil {
		return feedbackRow{unit: "Sandbox", health: 2, message: err.Error()}
	}
	return feedbackRow{unit: "Sandbox", health: 0, message: "enforcement available"}
}

// probeRuntimes runs each runtime's hello-world snippet through the
// full execution path.
func probeRuntimes(ctx context.Context, h *host) []feedbackRow {
	rows := make([]feedbackRow, 0)
	for _, id := range h.reg.IDs() {
		rt, _ := h.reg.Get(id)
		if rt.Probe == "" {
			rows = append(rows, feedbackRow{unit: rt.Name, health: 1, message: "no probe snippet"})
			continue
		}

		res := h.runner.Run(ctx, api.ExecReq{
			ExecUuid: uuid.NewString(),
			Code:     rt.Probe,
			Runtime:  rt.ID,
			Limits: api.Limits{
				TimeoutSec:     10,
				MaxMemoryBytes: 256 << 20,
				MaxOutputBytes: 64 << 10,
			},
		}, gatherer.Discard{})

		row := feedbackRow{unit: rt.Name}
		switch {
		case res.Status == api.StatusOk && strings.Contains(res.Stdout, "Hello, World!"):
			row.message = "ok"
		case res.Status == api.StatusOk:
			row.health = 2
			row.message = fmt.Sprintf("unexpected output: %q", res.Stdout)
		default:
			row.health = 2
			row.message = string(res.Status)
			if res.ErrorMessage != nil {
				row.message += ": " + *res.ErrorMessage
			}
			if res.Stderr != "" {
				row.message += ": " + strings.TrimSpace(res.Stderr)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func outputFeedback(feedback []feedbackRow) {
	for _, row := range feedback {
		var status string
		switch row.health {
		case 0:
			status = color.GreenString("OK")
		case 1:
			status = color.YellowString("WARN")
		default:
			status = color.RedString("FAIL")
		}
		fmt.Printf("%-20s %-6s %s\n", row.unit, status, row.message)
	}
}
