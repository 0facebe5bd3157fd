package sqsgath

import (
	"strings"

	"github.com/runbox/runbox/api"
)

// trimResultOutput bounds the stdout/stderr carried by a progress
// event. The full captured output still travels in the final result;
// stream payloads only get a readable excerpt.
func trimResultOutput(res *api.ExecResult, maxHeight int, maxWidth int) *api.ExecResult {
	if res == nil {
		return nil
	}

	trimmed := *res
	trimmed.Stdout = trimStrToRect(res.Stdout, maxHeight, maxWidth)
	trimmed.Stderr = trimStrToRect(res.Stderr, maxHeight, maxWidth)
	return &trimmed
}

func trimStrToRect(s string, maxHeight int, maxWidth int) string {
	if s == "" {
		return s
	}
	res := ""
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
		lines = append(lines, "[...]")
	}
	for i, line := range lines {
		if i > 0 {
			res += "\n"
		}
		if len(line) > maxWidth {
			res += line[:maxWidth] + "[...]"
		} else {
			res += line
		}
	}
	return res
}
