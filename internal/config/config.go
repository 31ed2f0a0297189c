// Package config implements the engine's single options record: what a
// host sets up once (exclusion globs, cache budgets, worker counts,
// ParserOptions defaults) before driving the Unified Parser. This stays a
// thin, mergeable settings struct rather than a general-purpose project/
// search/indexing configuration system; see DESIGN.md for what was
// dropped and why.
package config

import (
	"os"
	"runtime"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// Config is the engine's single options record.
type Config struct {
	Version  int
	Project  Project
	Classify Classify
	Cache    Cache
	Pattern  Pattern
	Include  []string
	Exclude  []string
}

// Project names the root the engine is scoped to.
type Project struct {
	Root string
	Name string
}

// Classify controls how paths are filtered before they ever reach the classifier.
type Classify struct {
	RespectGitignore bool
	FollowSymlinks   bool
}

// Cache sizes the three persistent NamedCaches a Coordinator pre-registers
// (internal/cache.NewCoordinator), plus the TTL they share.
type Cache struct {
	ASTBudgetBytes            int
	PatternBudgetBytes        int
	ClassificationBudgetBytes int
	TTLSeconds                int
}

// Pattern seeds the Unified Parser's default ParserOptions and the pattern
// engine's worker pool size.
type Pattern struct {
	MaxWorkers          int
	PatternTimeoutMS    int
	RequestCacheEnabled bool
	ExtractFeatures     bool
	ExtractBlocks       bool
}

// ToParserOptions builds the ParserOptions a host passes to every Parse
// call by default, letting per-call options override individual fields.
func (p Pattern) ToParserOptions() types.ParserOptions {
	opts := types.DefaultParserOptions()
	opts.PatternTimeoutMS = p.PatternTimeoutMS
	opts.RequestCacheEnabled = p.RequestCacheEnabled
	opts.ExtractFeatures = p.ExtractFeatures
	opts.ExtractBlocks = p.ExtractBlocks
	return opts
}

// Load reads configuration starting from path (used as the KDL search
// directory) with no explicit root override.
func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads a global config from ~/.repoanalyzer.kdl (if present),
// a project config from .repoanalyzer.kdl in rootDir (or in path when rootDir
// is empty, or in "." when both are) if present, merges the
// two (project overrides, base exclusions are preserved), and falls back to
// defaultConfig() when neither file exists.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if path != "" {
		searchDir = path
	}
	if rootDir != "" {
		searchDir = rootDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	projectCfg, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}
	projectConfig = projectCfg

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	cfg := defaultConfig(searchDir)
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

func defaultConfig(searchDir string) *Config {
	root := searchDir
	if cwd, err := os.Getwd(); err == nil {
		root = cwd
	}

	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Classify: Classify{
			RespectGitignore: true,
			FollowSymlinks:   false,
		},
		Cache: Cache{
			ASTBudgetBytes:            64 * 1024 * 1024,
			PatternBudgetBytes:        32 * 1024 * 1024,
			ClassificationBudgetBytes: 4 * 1024 * 1024,
			TTLSeconds:                300,
		},
		Pattern: Pattern{
			MaxWorkers:          runtime.NumCPU(),
			PatternTimeoutMS:    5000,
			RequestCacheEnabled: true,
			ExtractFeatures:     true,
			ExtractBlocks:       true,
		},
		Include: []string{},
		Exclude: getDefaultExclusions(),
	}
}

// mergeConfigs merges a base config with a project config; project settings
// win, but base exclusions are preserved alongside the project's own.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		excludeMap := make(map[string]bool, len(base.Exclude)+len(project.Exclude))
		for _, pattern := range base.Exclude {
			excludeMap[pattern] = true
		}
		for _, pattern := range project.Exclude {
			excludeMap[pattern] = true
		}
		merged.Exclude = make([]string, 0, len(excludeMap))
		for pattern := range excludeMap {
			merged.Exclude = append(merged.Exclude, pattern)
		}
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts detects build output directories from
// language-specific project files (package.json, Cargo.toml, ...) and adds
// them to the exclusion list.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}
	detector := NewBuildArtifactDetector(c.Project.Root)
	if detected := detector.DetectOutputDirectories(); len(detected) > 0 {
		c.Exclude = DeduplicatePatterns(append(c.Exclude, detected...))
	}
}
