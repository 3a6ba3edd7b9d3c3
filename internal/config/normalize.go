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
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeOrganizer()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeStorage() error {
	if value, ok := os.LookupEnv("FILER_STORAGE_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Storage.Root = value
	}
	var err error
	if c.Storage.Root, err = expandPath(strings.TrimSpace(c.Storage.Root)); err != nil {
		return fmt.Errorf("storage.root: %w", err)
	}
	drives := make(map[string]string, len(c.Storage.Drives))
	for id, root := range c.Storage.Drives {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(root))
		if err != nil {
			return fmt.Errorf("storage.drives.%s: %w", id, err)
		}
		drives[id] = expanded
	}
	c.Storage.Drives = drives
	return nil
}

func (c *Config) normalizeOrganizer() {
	c.Organizer.ConflictStrategy = strings.ToLower(strings.TrimSpace(c.Organizer.ConflictStrategy))
	if c.Organizer.ConflictStrategy == "" {
		c.Organizer.ConflictStrategy = defaultConflictStrategy
	}
	if c.Organizer.MaxRenameAttempts <= 0 {
		c.Organizer.MaxRenameAttempts = defaultMaxRenameAttempts
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("FILER_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
