package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateRanking(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateImages() error {
	for key, raw := range map[string]string{
		"images.lookup_url":      c.Images.LookupURL,
		"images.object_base_url": c.Images.ObjectBaseURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	if c.Images.BatchSize <= 0 {
		return errors.New("images.batch_size must be positive")
	}
	if c.Images.MaxInFlight <= 0 {
		return errors.New("images.max_in_flight must be positive")
	}
	if c.Images.MaxRetries < 0 {
		return errors.New("images.max_retries must be zero or greater")
	}
	if c.Images.RetryDelayMillis < 0 {
		return errors.New("images.retry_delay_ms must be zero or greater")
	}
	if c.Images.RequestTimeoutSeconds <= 0 {
		return errors.New("images.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateRanking() error {
	switch c.Ranking.Precedence {
	case PrecedenceLatest, PrecedenceEarliest:
		return nil
	default:
		return fmt.Errorf("ranking.precedence must be %q or %q, got %q", PrecedenceLatest, PrecedenceEarliest, c.Ranking.Precedence)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
