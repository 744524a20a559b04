package config

import "time"

// SchedulerConfig holds scheduler batch-run and blackout-window configuration.
type SchedulerConfig struct {
	// HorizonDays bounds the planning window: a job whose placement would
	// end more than this many days after the run starts stays pending.
	HorizonDays int `mapstructure:"horizon_days" validate:"min=1"`

	// BlackoutStart/BlackoutEnd are "HH:MM" wall-clock strings marking a
	// daily window during which the scheduler will not start new jobs.
	BlackoutStart string `mapstructure:"blackout_start" validate:"omitempty,blackout_time"`
	BlackoutEnd   string `mapstructure:"blackout_end" validate:"omitempty,blackout_time"`

	// SetupMinutes is the setup block added before a job placed on a
	// printer whose loaded colors do not cover all of the job's colors.
	SetupMinutes int `mapstructure:"setup_minutes" validate:"min=0"`

	// Interval is how often the daemon triggers a scheduling pass.
	Interval time.Duration `mapstructure:"interval"`
}

// MetricsConfig exposes the Prometheus metrics endpoint. Disabled by
// default; when enabled the daemon serves Path on Host:Port.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port" validate:"min=0,max=65535"`
	Path    string `mapstructure:"path"`
}

// CryptoConfig holds the envelope-encryption key used for credentials,
// webhook URLs, SMTP passwords and OAuth client secrets at rest.
type CryptoConfig struct {
	// EncryptionKey is a base64-encoded 32-byte AES-256 key.
	EncryptionKey string `mapstructure:"encryption_key" validate:"required"`
}

// CatalogConfig points at the optional external filament-color catalog used
// by colormatch.CatalogProvider. Left blank, the no-op provider is used.
type CatalogConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AlertDispatchConfig configures the outbound alert-notification channels.
type AlertDispatchConfig struct {
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Push    PushConfig    `mapstructure:"push"`
	Workers int           `mapstructure:"workers" validate:"min=1"`
}

// SMTPConfig configures the email alert channel.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// WebhookConfig configures the generic/chat-platform webhook alert channels.
type WebhookConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	AllowPrivateHost bool          `mapstructure:"allow_private_host"`
}

// PushConfig configures Web Push (VAPID) notifications.
type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subject         string `mapstructure:"subject"`
}

// StorageConfig points at the on-disk data directory holding uploaded
// artifacts and backups.
type StorageConfig struct {
	// DataDir is the root directory; artifacts live under
	// <DataDir>/print_files and backups under <DataDir>/backups.
	DataDir string `mapstructure:"data_dir" validate:"required"`
}
