package termgath

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/runbox/runbox/api"
)

// TerminalGatherer prints progress events for interactive one-shot runs.
type TerminalGatherer struct {
	StartedAt time.Time
}

func New() *TerminalGatherer { return &TerminalGatherer{StartedAt: time.Now()} }

func (t *TerminalGatherer) StartJob(systemInfo string) {
	color.Cyan("== Execution started ==")
	if systemInfo != "" {
		fmt.Println(systemInfo)
	}
}

func (t *TerminalGatherer) StartExec(runtime string) {
	fmt.Printf("-> spawning %s\n", runtime)
}

func (t *TerminalGatherer) FinishExec(result *api.ExecResult) {
	if result == nil {
		return
	}
	switch result.Status {
	case api.StatusOk:
		color.Green("<- status: %s", result.Status)
	case api.StatusCrashed:
		color.Yellow("<- status: %s", result.Status)
	default:
		color.Red("<- status: %s", result.Status)
	}
	if result.ExitCode != nil {
		fmt.Printf("   exit=%d", *result.ExitCode)
	} else {
		fmt.Printf("   exit=none")
	}
	fmt.Printf(" elapsed=%dms", result.ElapsedMs)
	if result.PeakMemoryBytes != nil {
		fmt.Printf(" peak_mem=%dKiB", *result.PeakMemoryBytes/1024)
	}
	fmt.Println()
	if result.Stdout != "" {
		fmt.Printf("stdout:\n%s", result.Stdout)
	}
	if result.Stderr != "" {
		color.Set(color.Faint)
		fmt.Printf("stderr:\n%s", result.Stderr)
		color.Unset()
	}
}

func (t *TerminalGatherer) FinishJob(errMsg *string) {
	if errMsg != nil {
		color.Red("== Execution failed: %s ==", *errMsg)
		return
	}
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	color.Cyan("== Execution finished in %s ==", dur)
}
