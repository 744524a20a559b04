package config

import "time"

// DaemonConfig holds fleetd service configuration.
type DaemonConfig struct {
	// Unix socket path for local status/control IPC.
	SocketPath string `mapstructure:"socket_path"`

	// PID file location.
	PIDFile string `mapstructure:"pid_file"`

	// Maximum number of concurrently supervised printer sessions.
	MaxPrinters int `mapstructure:"max_printers" validate:"min=1"`

	// Health check interval for printer sessions.
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval" validate:"required"`

	// Session restart policy.
	RestartPolicy RestartPolicyConfig `mapstructure:"restart_policy"`

	// Graceful shutdown timeout.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`
}

// RestartPolicyConfig holds printer-session restart policy configuration.
// The session supervisor does not read these settings: it reconnects with
// its own fixed backoff (1s base, 60s cap, 20% jitter) and keeps retrying
// while the printer stays active.
type RestartPolicyConfig struct {
	// Enable automatic reconnect on disconnect.
	Enabled bool `mapstructure:"enabled"`

	// Maximum reconnect attempts.
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=0"`

	// Delay between reconnect attempts.
	Delay time.Duration `mapstructure:"delay"`

	// Backoff multiplier for retry delays.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" validate:"min=1"`
}
