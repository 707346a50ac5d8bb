// internal/provider/claude.go
package provider

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

func init() {
	Register("claude", func(s Settings) (Provider, error) {
		binary := s.Binary
		if binary == "" {
			discovered, err := discoverClaude()
			if err != nil {
				return nil, err
			}
			binary = discovered
		}
		if _, err := os.Stat(binary); err != nil {
			return nil, fmt.Errorf("claude binary not found at %s", binary)
		}
		return &ClaudeProvider{binary: binary, model: s.Model}, nil
	})
}

// ClaudeProvider drives the Claude Code CLI in non-interactive print mode.
type ClaudeProvider struct {
	binary string
	model  string
}

// ID returns the registry name for this provider.
func (p *ClaudeProvider) ID() string {
	return "claude"
}

// Run executes one task through the CLI. The CLI performs the actual file
// edits and command runs; this side only assembles flags from the task
// context and captures the outcome.
func (p *ClaudeProvider) Run(ctx context.Context, prompt string, pc Context) Result {
	args := []string{"--print"}
	if pc.AutoAccept {
		args = append(args, "--dangerously-skip-permissions")
	}
	if pc.ContinueSession {
		args = append(args, "--continue")
	}
	if p.model != "" {
		args = append(args, "--model", p.model)
	}
	args = append(args, prompt)

	cmd := exec.CommandContext(ctx, p.binary, args...)
	cmd.Dir = pc.ProjectDir
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{
		Success:  err == nil,
		Output:   stdout.String(),
		Error:    strings.TrimSpace(stderr.String()),
		Provider: p.ID(),
	}
	if err != nil && result.Error == "" {
		result.Error = err.Error()
	}
	if ctx.Err() != nil {
		result.Success = false
		result.Error = "interrupted: " + ctx.Err().Error()
	}
	return result
}

// discoverClaude searches PATH and the usual npm install locations for the
// claude binary.
func discoverClaude() (string, error) {
	if path, err := exec.LookPath("claude"); err == nil {
		return path, nil
	}

	locations := []string{
		"/usr/local/bin/claude",
		"/opt/homebrew/bin/claude",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".npm-global", "bin", "claude"),
			filepath.Join(home, "node_modules", ".bin", "claude"),
		)
	}

	for _, loc := range locations {
		if info, err := os.Stat(loc); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return loc, nil
		}
	}

	return "", fmt.Errorf("claude binary not found: please install the Claude Code CLI")
}
