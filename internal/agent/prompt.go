// internal/agent/prompt.go
package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"agentctl/internal/config"
)

// defaultPromptTemplate is used when no template file matches the requested
// name.
const defaultPromptTemplate = `You are an autonomous AI agent. Your task is to complete the following:

TASK: {task}

Project Context:
{project_context}

Conventions:
{conventions}

Guidelines:
1. Break down the task into clear steps
2. Implement each step carefully
3. Test your changes when possible
4. Follow project conventions
5. Provide clear summaries of changes

Execute this task autonomously, making all necessary file changes and running appropriate commands.`

// BuildPrompt renders the named template from .agentctl/prompts/<name>.md,
// falling back to the built-in default, and substitutes the task and project
// context placeholders.
func BuildPrompt(layout *config.Layout, templateName, task string, pctx ProjectContext) string {
	template := defaultPromptTemplate

	if templateName != "" {
		path := filepath.Join(layout.PromptsDir, templateName+".md")
		if data, err := os.ReadFile(path); err == nil {
			template = string(data)
		}
	}

	conventions := "{}"
	if len(pctx.Conventions) > 0 {
		if data, err := json.MarshalIndent(pctx.Conventions, "", "  "); err == nil {
			conventions = string(data)
		}
	}

	replacer := strings.NewReplacer(
		"{task}", task,
		"{project_context}", pctx.Context,
		"{conventions}", conventions,
	)
	return replacer.Replace(template)
}
