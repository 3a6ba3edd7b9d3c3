package config

const (
	defaultDataDir             = "~/.local/share/filer"
	defaultLogDir              = "~/.local/share/filer/logs"
	defaultStorageRoot         = "~/Documents/Filed"
	defaultAPIBind             = ""
	defaultCacheTTLSeconds     = 30
	defaultRegexTimeoutMs      = 100
	defaultSlowRegexMs         = 100
	defaultConflictStrategy    = "rename"
	defaultMaxRenameAttempts   = 100
	defaultDebounceMs          = 2000
	defaultRestartDelaySeconds = 5
	defaultNotifyTimeout       = 10
	defaultNotifyMinInterval   = 2
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Storage: Storage{
			Root:   defaultStorageRoot,
			Drives: map[string]string{},
		},
		Matching: Matching{
			CacheTTLSeconds:   defaultCacheTTLSeconds,
			RegexTimeoutMs:    defaultRegexTimeoutMs,
			SlowRegexMs:       defaultSlowRegexMs,
			HeuristicsEnabled: true,
		},
		Organizer: Organizer{
			ConflictStrategy:  defaultConflictStrategy,
			MaxRenameAttempts: defaultMaxRenameAttempts,
			VerifyCopies:      true,
		},
		Watch: Watch{
			DebounceMs:          defaultDebounceMs,
			RestartDelaySeconds: defaultRestartDelaySeconds,
			IgnorePatterns:      []string{"*.tmp", "*.part", "*.download", "*.crdownload", "*.partial"},
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyTimeout,
			Organized:          true,
			Queued:             false,
			Errors:             true,
			MinIntervalSeconds: defaultNotifyMinInterval,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
