// internal/config/config.go
package config

import (
	"os"
	"path/filepath"
)

// MetaDirName is the per-project metadata directory.
const MetaDirName = ".agentctl"

// SkipDirs are housekeeping, dependency and build directories excluded from
// snapshots, change tracking and indexing.
var SkipDirs = map[string]struct{}{
	MetaDirName:    {},
	".git":         {},
	"node_modules": {},
	"__pycache__":  {},
	".venv":        {},
	"venv":         {},
	"target":       {},
	"build":        {},
	"dist":         {},
	"vendor":       {},
}

// Layout holds all resolved per-project paths
type Layout struct {
	ProjectDir      string
	MetaDir         string
	CheckpointsDir  string
	TranscriptsDir  string
	PromptsDir      string
	SessionLogPath  string
	AgentConfigPath string
	ContextPath     string
	ConventionsPath string
	IndexPath       string
}

// Resolve creates a Layout rooted at projectDir and ensures the metadata
// directories exist.
func Resolve(projectDir string) (*Layout, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, err
	}

	metaDir := filepath.Join(abs, MetaDirName)
	l := &Layout{
		ProjectDir:      abs,
		MetaDir:         metaDir,
		CheckpointsDir:  filepath.Join(metaDir, "checkpoints"),
		TranscriptsDir:  filepath.Join(metaDir, "transcripts"),
		PromptsDir:      filepath.Join(metaDir, "prompts"),
		SessionLogPath:  filepath.Join(metaDir, "agent_sessions.jsonl"),
		AgentConfigPath: filepath.Join(metaDir, "agent.yml"),
		ContextPath:     filepath.Join(metaDir, "context.md"),
		ConventionsPath: filepath.Join(metaDir, "conventions.yml"),
		IndexPath:       filepath.Join(metaDir, "index.db"),
	}

	for _, dir := range []string{l.MetaDir, l.CheckpointsDir, l.TranscriptsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return l, nil
}
