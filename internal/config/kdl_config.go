package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from .repoanalyzer.kdl file
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".repoanalyzer.kdl")

	// Check if .repoanalyzer.kdl exists
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil // No KDL config found, use defaults
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .repoanalyzer.kdl: %v", err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	// Ensure root path is absolute for consistent path handling
	// Resolve relative paths relative to the directory containing the .repoanalyzer.kdl file
	if cfg != nil && cfg.Project.Root != "" {
		var absRoot string
		if filepath.IsAbs(cfg.Project.Root) {
			absRoot = cfg.Project.Root
		} else {
			// Resolve relative to the projectRoot directory (where .repoanalyzer.kdl is)
			absRoot = filepath.Join(projectRoot, cfg.Project.Root)
		}
		// Clean the path to resolve . and ..
		cfg.Project.Root = filepath.Clean(absRoot)
	} else if cfg != nil {
		// If no root specified in KDL, use the projectRoot parameter
		absRoot, err := filepath.Abs(projectRoot)
		if err == nil {
			cfg.Project.Root = absRoot
		} else {
			cfg.Project.Root = projectRoot
		}
	}

	return cfg, nil
}

// Simple KDL parser for the engine's configuration
func parseKDL(content string) (*Config, error) {
	// Default to absolute current working directory
	defaultRoot, _ := os.Getwd()
	if defaultRoot == "" {
		defaultRoot = "."
	}

	cfg := &Config{
		Version: 1,
		Project: Project{Root: defaultRoot},
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
			MaxWorkers:          4,
			PatternTimeoutMS:    5000,
			RequestCacheEnabled: true,
			ExtractFeatures:     true,
			ExtractBlocks:       true,
		},
		Include: []string{}, // No include patterns - include everything by default, filtered only by exclusions
		Exclude: []string{}, // Minimal exclusions - add exclusions in project .repoanalyzer.kdl if needed
	}

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children { // project { root "." name "foo" }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "classify":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Classify.RespectGitignore = b
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Classify.FollowSymlinks = b
					}
				}
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "ast_budget":
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Cache.ASTBudgetBytes = int(sz)
						}
					}
				case "pattern_budget":
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Cache.PatternBudgetBytes = int(sz)
						}
					}
				case "classification_budget":
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Cache.ClassificationBudgetBytes = int(sz)
						}
					}
				case "ttl_seconds":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.TTLSeconds = v
					}
				}
			}
		case "pattern":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Pattern.MaxWorkers = v
					}
				case "timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Pattern.PatternTimeoutMS = v
					}
				case "request_cache_enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Pattern.RequestCacheEnabled = b
					}
				case "extract_features":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Pattern.ExtractFeatures = b
					}
				case "extract_blocks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Pattern.ExtractBlocks = b
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			// Replace default exclusions if exclude block is present
			// This allows global config to specify its own exclusions
			cfg.Exclude = collectStringArgs(n)
		}
	}

	// Enrich exclusions with language-specific build artifacts
	cfg.EnrichExclusionsWithBuildArtifacts()

	return cfg, nil
}

// Helper functions leveraging kdl-go document model (simple copies from propagation config helpers)
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}
func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	// First try to collect from arguments (for inline format)
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// If no arguments, collect from children (for block format like exclude { "pattern" })
	// In KDL block format, strings are child nodes where the node name is the string value
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			// Try to get string from arguments first
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				// If no arguments, the node name itself is the string value
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}
func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

// getDefaultExclusions lists the directories and file types that never
// carry source worth running the pattern engine over, scoped to the
// ten grammars astbackend ships plus the custom-format backends
// (TOML, JavaScript, and the line-oriented family). A project-specific
// build output directory that doesn't match one of these globs is
// EnrichExclusionsWithBuildArtifacts's job, not this list's.
func getDefaultExclusions() []string {
	return []string{
		// Hidden directories (catches .git, .svn, .hg, and tool dotdirs)
		"**/.*/**",

		// Package managers & dependency trees, by language
		"**/node_modules/**", // JavaScript/TypeScript
		"**/vendor/**",       // Go, PHP (Composer)
		"**/.gradle/**",      // Java (Gradle)
		"**/.m2/**",          // Java (Maven)
		"**/.cargo/**",       // Rust
		"**/target/**",       // Rust, Java build output
		"**/venv/**",         // Python virtual environments
		"**/.venv/**",
		"**/__pycache__/**",
		"**/*.pyc",
		"**/*.pyo",
		"**/*.egg-info/**",
		"**/.pytest_cache/**",
		"**/.mypy_cache/**",
		"**/.ruff_cache/**",
		"**/zig-cache/**", // Zig
		"**/zig-out/**",

		// Generic build/output directories
		"**/dist/**",
		"**/build/**",
		"**/out/**",
		"**/bin/**",
		"**/obj/**", // .NET
		"**/*.min.js",
		"**/*.min.css",
		"**/*.bundle.js",
		"**/CMakeFiles/**", // C/C++

		// Editor/VCS temp files
		"**/*.swp",
		"**/*.swo",
		"**/*~",
		"**/*.orig", // merge-conflict leftovers
		"**/.vscode/**",
		"**/.vs/**",
		"**/.idea/**",

		// OS cruft
		"**/.DS_Store",
		"**/Thumbs.db",
		"**/desktop.ini",

		// Compiled/binary artifacts no grammar can parse
		"**/*.exe",
		"**/*.dll",
		"**/*.so",
		"**/*.so.*",
		"**/*.dylib",
		"**/*.a",
		"**/*.o",
		"**/*.obj",
		"**/*.class", // Java bytecode
		"**/*.pdb",   // debug symbols
		"**/*.dSYM/**",

		// Archives (nothing inside is scanned in place)
		"**/*.zip",
		"**/*.tar",
		"**/*.tar.gz",
		"**/*.tgz",
		"**/*.tar.bz2",
		"**/*.rar",
		"**/*.7z",
		"**/*.gz",
		"**/*.jar",
		"**/*.war",

		// JS/TS tooling caches
		"**/.cache/**",
		"**/.next/**",
		"**/.nuxt/**",
		"**/.parcel-cache/**",
		"**/.turbo/**",
		"**/.vite/**",
		"**/.yarn/**",

		// Logs & ephemeral output
		"**/logs/**",
		"**/*.log",
		"**/tmp/**",
		"**/temp/**",

		// Coverage & test artifacts
		"**/coverage/**",
		"**/.coverage",
		"**/.nyc_output/**",
		"**/htmlcov/**",
		"**/.tox/**",
		"**/test-results/**",
	}
}
