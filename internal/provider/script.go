// internal/provider/script.go
package provider

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

func init() {
	Register("script", func(s Settings) (Provider, error) {
		if strings.TrimSpace(s.Command) == "" {
			return nil, fmt.Errorf("script provider requires a command")
		}
		return &ScriptProvider{command: s.Command}, nil
	})
}

// ScriptProvider runs an arbitrary shell command as the execution backend.
// The prompt arrives on stdin and the task context is exposed through
// AGENT_* environment variables, so any CLI agent can be wired in without
// code changes.
type ScriptProvider struct {
	command string
}

// ID returns the registry name for this provider.
func (p *ScriptProvider) ID() string {
	return "script"
}

// Run executes the configured command with the prompt on stdin.
func (p *ScriptProvider) Run(ctx context.Context, prompt string, pc Context) Result {
	cmd := exec.CommandContext(ctx, "sh", "-c", p.command)
	cmd.Dir = pc.ProjectDir
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = append(os.Environ(),
		"AGENT_TASK="+pc.Task,
		"AGENT_CHECKPOINT_ID="+pc.CheckpointID,
		fmt.Sprintf("AGENT_AUTO_ACCEPT=%t", pc.AutoAccept),
		fmt.Sprintf("AGENT_CONTINUE_SESSION=%t", pc.ContinueSession),
	)

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
