package config

// Fees selects the platform fee policy.
type Fees struct {
	// AllowZeroPlatformFee widens the platform fee bound from [1,100] to [0,100].
	AllowZeroPlatformFee bool `toml:"AllowZeroPlatformFee"`
}

// Log controls the optional rotated log file. Stdout logging is always on.
type Log struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RateLimit defines the per-client JSON-RPC request budget.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute"`
	Burst             int `toml:"Burst"`
	// TrustedProxies are peer IPs allowed to name the client through
	// X-Real-IP or X-Forwarded-For.
	TrustedProxies []string `toml:"TrustedProxies"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
	// SampleRatio is the fraction of root spans kept. Zero keeps every span.
	SampleRatio float64 `toml:"SampleRatio"`
}

// Storage selects the ledger backend. An empty DSN keeps the LevelDB database
// under DataDir. postgres:// URLs select Postgres, anything else is a SQLite
// path relative to the config file.
type Storage struct {
	DSN string `toml:"DSN"`
}
