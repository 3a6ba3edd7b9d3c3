package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateOrganizer(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStorage() error {
	if c.Storage.Root == "" {
		return errors.New("storage.root must be set (or export FILER_STORAGE_ROOT)")
	}
	for id, root := range c.Storage.Drives {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("storage.drives.%s must be an absolute path", id)
		}
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.CacheTTLSeconds < 0 {
		return errors.New("matching.cache_ttl_seconds must be >= 0")
	}
	if c.Matching.RegexTimeoutMs <= 0 {
		return errors.New("matching.regex_timeout_ms must be positive")
	}
	if c.Matching.SlowRegexMs < 0 {
		return errors.New("matching.slow_regex_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateOrganizer() error {
	switch c.Organizer.ConflictStrategy {
	case "rename", "skip", "overwrite":
	default:
		return fmt.Errorf("organizer.conflict_strategy: unsupported value %q (use rename, skip, or overwrite)", c.Organizer.ConflictStrategy)
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.DebounceMs <= 0 {
		return errors.New("watch.debounce_ms must be positive")
	}
	if c.Watch.RestartDelaySeconds <= 0 {
		return errors.New("watch.restart_delay_seconds must be positive")
	}
	for _, pattern := range c.Watch.IgnorePatterns {
		if _, err := filepath.Match(pattern, "sample"); err != nil {
			return fmt.Errorf("watch.ignore_patterns: invalid glob %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.MinIntervalSeconds < 0 {
		return errors.New("notifications.min_interval_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
