package claudecode

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// toolDetail formats a tool_use block into a short human-readable action
// description for the tool-execution event.
func toolDetail(name string, input json.RawMessage) string {
	var fields struct {
		FilePath string `json:"file_path"`
		Command  string `json:"command"`
		Pattern  string `json:"pattern"`
		URL      string `json:"url"`
	}
	_ = json.Unmarshal(input, &fields)

	switch name {
	case "Read":
		return withTarget("Reading", shortPath(fields.FilePath), "file")
	case "Edit":
		return withTarget("Editing", shortPath(fields.FilePath), "file")
	case "Write":
		return withTarget("Writing", shortPath(fields.FilePath), "file")
	case "Bash":
		return withTarget("Running", firstWord(fields.Command), "command")
	case "Glob", "Grep":
		return withTarget("Searching", truncate(fields.Pattern, 20), "")
	case "WebFetch":
		return "Fetching URL"
	case "Task":
		return "Running subagent"
	default:
		return name
	}
}

func withTarget(verb, target, fallback string) string {
	if target == "" {
		if fallback == "" {
			return verb
		}
		return verb + " " + fallback
	}
	return verb + " " + target
}

func shortPath(path string) string {
	if path == "" {
		return ""
	}
	return truncate(filepath.Base(path), 24)
}

func firstWord(cmd string) string {
	if i := strings.IndexAny(cmd, " \n"); i >= 0 {
		cmd = cmd[:i]
	}
	return truncate(cmd, 24)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
