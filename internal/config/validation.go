package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only, the deprecated allow/prefer modes are
	// vulnerable to MITM.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 2. Embedder configuration
	if c.Embedder.BaseURL == "" {
		return fmt.Errorf("%w: base_url cannot be empty", ErrInvalidEmbedder)
	}
	if c.Embedder.Model == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidEmbedder)
	}
	if c.Embedder.Dimension < 1 || c.Embedder.Dimension > 4096 {
		return fmt.Errorf("%w: dimension must be between 1 and 4096, got %d",
			ErrInvalidEmbedder, c.Embedder.Dimension)
	}

	// 3. Engine bindings: categories may be absent entirely (index-only
	// deployments), but a present binding must be complete.
	for name, binding := range c.Engines {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: category name cannot be empty", ErrInvalidEngineBinding)
		}
		if binding.BaseURL == "" {
			return fmt.Errorf("%w: category %q has no base_url", ErrInvalidEngineBinding, name)
		}
		if binding.APIKey == "" {
			return fmt.Errorf("%w: category %q has no api_key", ErrInvalidEngineBinding, name)
		}
	}

	// 4. Router configuration
	if c.Router.MinAnswerLength < 1 || c.Router.MinAnswerLength > 1000 {
		return fmt.Errorf("%w: min_answer_length must be between 1 and 1000, got %d",
			ErrInvalidRouter, c.Router.MinAnswerLength)
	}
	if c.Router.MaxRetries < 0 || c.Router.MaxRetries > 10 {
		return fmt.Errorf("%w: max_retries must be between 0 and 10, got %d",
			ErrInvalidRouter, c.Router.MaxRetries)
	}
	if c.Router.RetryMultiplier < 1 {
		return fmt.Errorf("%w: retry_multiplier must be >= 1, got %v",
			ErrInvalidRouter, c.Router.RetryMultiplier)
	}
	if c.Router.EngineTimeout <= 0 {
		return fmt.Errorf("%w: engine_timeout must be positive, got %v",
			ErrInvalidRouter, c.Router.EngineTimeout)
	}

	// 5. Search defaults
	if c.SearchLimit < 1 || c.SearchLimit > 100 {
		return fmt.Errorf("%w: search_limit must be between 1 and 100, got %d",
			ErrInvalidRouter, c.SearchLimit)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be between 0 and 1, got %v",
			ErrInvalidRouter, c.SimilarityThreshold)
	}

	return nil
}
