// internal/agent/context.go
package agent

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"agentctl/internal/config"
)

// ProjectContext is the project knowledge handed to the provider with every
// task: the free-text context document and the structured conventions.
type ProjectContext struct {
	Context     string
	Conventions map[string]any
}

// LoadProjectContext reads .agentctl/context.md and conventions.yml. Both are
// optional; unreadable files are logged and skipped.
func LoadProjectContext(layout *config.Layout, logger *slog.Logger) ProjectContext {
	if logger == nil {
		logger = slog.Default()
	}

	var pctx ProjectContext

	if data, err := os.ReadFile(layout.ContextPath); err == nil {
		pctx.Context = string(data)
	} else if !os.IsNotExist(err) {
		logger.Warn("could not read project context", "path", layout.ContextPath, "error", err)
	}

	if data, err := os.ReadFile(layout.ConventionsPath); err == nil {
		if err := yaml.Unmarshal(data, &pctx.Conventions); err != nil {
			logger.Warn("could not parse conventions", "path", layout.ConventionsPath, "error", err)
		}
	} else if !os.IsNotExist(err) {
		logger.Warn("could not read conventions", "path", layout.ConventionsPath, "error", err)
	}

	return pctx
}
