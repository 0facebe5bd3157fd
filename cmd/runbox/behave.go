package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/runbox/runbox/api"
	"github.com/runbox/runbox/internal/behave"
	"github.com/runbox/runbox/internal/gatherer"
	"github.com/urfave/cli/v3"
)

func behaveCmd() *cli.Command {
	return &cli.Command{
		Name:      "behave",
		Usage:     "run a behaviour scenario file against the live sandbox",
		ArgsUsage: "<scenarios.toml>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "runtimes", Usage: "TOML file overlaying the builtin runtime table"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one scenario file argument")
			}

			cases, err := behave.Parse(cmd.Args().First())
			if err != nil {
				return err
			}

			h, err := newHost(cmd.String("runtimes"))
			if err != nil {
				return err
			}

			failed := 0
			for _, c := range cases {
				res := h.runner.Run(ctx, c.Request, gatherer.Discard{})
				if problems := checkExpect(c.Expect, res); len(problems) > 0 {
					failed++
					color.Red("FAIL %s", c.Name)
					for _, p := range problems {
						fmt.Printf("     %s\n", p)
					}
				} else {
					color.Green("PASS %s", c.Name)
				}
			}

			fmt.Printf("%d scenarios, %d failed\n", len(cases), failed)
			if failed > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func checkExpect(expect behave.SpecExpect, res api.ExecResult) []string {
	var problems []string
	if expect.Status != "" && expect.Status != string(res.Status) {
		problems = append(problems, fmt.Sprintf("status: want %q, got %q", expect.Status, res.Status))
	}
	if expect.Stdout != nil && *expect.Stdout != res.Stdout {
		problems = append(problems, fmt.Sprintf("stdout: want %q, got %q", *expect.Stdout, res.Stdout))
	}
	if expect.StderrHas != nil && !strings.Contains(res.Stderr, *expect.StderrHas) {
		problems = append(problems, fmt.Sprintf("stderr: want substring %q, got %q", *expect.StderrHas, res.Stderr))
	}
	if expect.ExitCode != nil {
		if res.ExitCode == nil {
			problems = append(problems, fmt.Sprintf("exit code: want %d, got none", *expect.ExitCode))
		} else if *res.ExitCode != *expect.ExitCode {
			problems = append(problems, fmt.Sprintf("exit code: want %d, got %d", *expect.ExitCode, *res.ExitCode))
		}
	}
	return problems
}
