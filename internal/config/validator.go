package config

import (
	"errors"
	"fmt"
	"runtime"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
// Returns an error if validation fails.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	if err := v.validateCacheConfig(&cfg.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := v.validatePatternConfig(&cfg.Pattern); err != nil {
		return fmt.Errorf("pattern config: %w", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

// validateProjectConfig validates project configuration
func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

// validateCacheConfig validates the persistent cache budgets the
// Coordinator is sized with.
func (v *Validator) validateCacheConfig(c *Cache) error {
	if c.ASTBudgetBytes <= 0 {
		return fmt.Errorf("ASTBudgetBytes must be positive, got %d", c.ASTBudgetBytes)
	}
	if c.PatternBudgetBytes <= 0 {
		return fmt.Errorf("PatternBudgetBytes must be positive, got %d", c.PatternBudgetBytes)
	}
	if c.ClassificationBudgetBytes <= 0 {
		return fmt.Errorf("ClassificationBudgetBytes must be positive, got %d", c.ClassificationBudgetBytes)
	}
	if c.TTLSeconds < 0 {
		return fmt.Errorf("TTLSeconds cannot be negative, got %d", c.TTLSeconds)
	}
	return nil
}

// validatePatternConfig validates the pattern engine defaults that seed
// ParserOptions for every Parse call.
func (v *Validator) validatePatternConfig(p *Pattern) error {
	if p.MaxWorkers < 0 {
		return fmt.Errorf("MaxWorkers cannot be negative, got %d", p.MaxWorkers)
	}
	if p.PatternTimeoutMS < 0 {
		return fmt.Errorf("PatternTimeoutMS cannot be negative, got %d", p.PatternTimeoutMS)
	}
	return nil
}

// setSmartDefaults applies smart defaults based on system capabilities.
func (v *Validator) setSmartDefaults(cfg *Config) {
	// MaxWorkers: 0 means auto-detect, use cores-1 to leave headroom,
	// minimum of 1.
	if cfg.Pattern.MaxWorkers == 0 {
		cfg.Pattern.MaxWorkers = max(1, runtime.NumCPU()-1)
	}

	if cfg.Pattern.PatternTimeoutMS == 0 {
		cfg.Pattern.PatternTimeoutMS = 5000
	}
}

// ValidateConfig is a convenience function for quick validation.
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
