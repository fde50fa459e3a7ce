package common

import (
	"encoding/json"
	"io"
	"time"
)

// CommandResult is the outcome of one tool command.
type CommandResult struct {
	Tool     string
	Command  string
	Details  []string
	Err      error
	Duration time.Duration
}

func (r CommandResult) OK() bool { return r.Err == nil }

type ciResult struct {
	OK         bool     `json:"ok"`
	Tool       string   `json:"tool"`
	Command    string   `json:"command"`
	DurationMS int64    `json:"duration_ms"`
	Details    []string `json:"details,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// PrintCIResult writes res as indented JSON for machine consumers.
func PrintCIResult(w io.Writer, res CommandResult) error {
	out := ciResult{
		OK:         res.OK(),
		Tool:       res.Tool,
		Command:    res.Command,
		DurationMS: res.Duration.Milliseconds(),
		Details:    res.Details,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
