package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImages()
	c.normalizeCriteria()
	c.normalizeRanking()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("BOLDRANK_DB"); ok && strings.TrimSpace(value) != "" {
		c.Paths.Database = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.Database) == "" {
		c.Paths.Database = defaultDatabasePath
	}
	var err error
	if c.Paths.Database, err = expandPath(strings.TrimSpace(c.Paths.Database)); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeImages() {
	c.Images.LookupURL = strings.TrimSpace(c.Images.LookupURL)
	if c.Images.LookupURL == "" {
		c.Images.LookupURL = defaultLookupURL
	}
	c.Images.ObjectBaseURL = strings.TrimSpace(c.Images.ObjectBaseURL)
	if c.Images.ObjectBaseURL == "" {
		c.Images.ObjectBaseURL = defaultObjectBaseURL
	}
	c.Images.UserAgent = strings.TrimSpace(c.Images.UserAgent)
	if c.Images.UserAgent == "" {
		c.Images.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeCriteria() {
	enabled := c.Criteria.Enabled[:0]
	for _, name := range c.Criteria.Enabled {
		if trimmed := strings.ToUpper(strings.TrimSpace(name)); trimmed != "" {
			enabled = append(enabled, trimmed)
		}
	}
	c.Criteria.Enabled = enabled
	if c.Criteria.Workers <= 0 {
		c.Criteria.Workers = defaultCriteriaWorkers
	}
}

func (c *Config) normalizeRanking() {
	c.Ranking.Precedence = strings.ToLower(strings.TrimSpace(c.Ranking.Precedence))
	if c.Ranking.Precedence == "" {
		c.Ranking.Precedence = defaultPrecedence
	}
	if c.Ranking.ChunkSize <= 0 {
		c.Ranking.ChunkSize = defaultChunkSize
	}
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("BOLDRANK_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
