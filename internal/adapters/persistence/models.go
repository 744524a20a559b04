// Package persistence holds the GORM row structs (all in this file)
// and their repository implementations (one file per aggregate). Row structs
// carry explicit TableName() methods and translate to/from the domain
// entities in internal/domain/*; maps and slices that GORM cannot model
// directly are stored as JSON text columns.
package persistence

import "time"

// PrinterModel is the printers table.
type PrinterModel struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name             string    `gorm:"column:name;unique;not null"`
	Kind             string    `gorm:"column:kind;not null"`
	Host             string    `gorm:"column:host;not null"`
	CredentialsBlob  string    `gorm:"column:credentials_blob;type:text"`
	ModelFamily      string    `gorm:"column:model_family"`
	SlotCount        int       `gorm:"column:slot_count;not null"`
	Active           bool      `gorm:"column:active;not null;default:true"`
	LifetimePrintSec int64     `gorm:"column:lifetime_print_sec;not null;default:0"`
	PrintCount       int       `gorm:"column:print_count;not null;default:0"`
	HoursSinceServ   float64   `gorm:"column:hours_since_serv;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null"`
}

func (PrinterModel) TableName() string { return "printers" }

// FilamentSlotModel is the filament_slots table, one row per AMS/feeder
// channel, unique on (printer_id, slot_number).
type FilamentSlotModel struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PrinterID       int64     `gorm:"column:printer_id;not null;uniqueIndex:idx_slot_unique,priority:1;constraint:OnDelete:CASCADE"`
	SlotNumber      int       `gorm:"column:slot_number;not null;uniqueIndex:idx_slot_unique,priority:2"`
	Material        string    `gorm:"column:material"`
	ColorLabel      string    `gorm:"column:color_label"`
	ColorHex        string    `gorm:"column:color_hex"`
	AssignedSpoolID *int64    `gorm:"column:assigned_spool_id;index"`
	SpoolConfirmed  bool      `gorm:"column:spool_confirmed;not null;default:false"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

func (FilamentSlotModel) TableName() string { return "filament_slots" }

// FilamentLibraryModel is the filament_library table, the filament product
// catalog used by AMS reconciliation's material+hex matching.
type FilamentLibraryModel struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Brand       string  `gorm:"column:brand;not null"`
	ProductName string  `gorm:"column:product_name;not null"`
	Material    string  `gorm:"column:material;not null;index:idx_library_material_hex,priority:1"`
	ColorHex    string  `gorm:"column:color_hex;not null;index:idx_library_material_hex,priority:2"`
	CostPerGram float64 `gorm:"column:cost_per_gram;not null;default:0"`
}

func (FilamentLibraryModel) TableName() string { return "filament_library" }

// SpoolModel is the spools table.
type SpoolModel struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	LibraryID       int64     `gorm:"column:library_id;not null;index"`
	InitialGrams    float64   `gorm:"column:initial_grams;not null"`
	RemainingGrams  float64   `gorm:"column:remaining_grams;not null"`
	EmptySpoolGrams float64   `gorm:"column:empty_spool_grams;not null;default:0"`
	RFIDTag         *string   `gorm:"column:rfid_tag;index"`
	QRCode          *string   `gorm:"column:qr_code;index"`
	Status          string    `gorm:"column:status;not null;default:'active'"`
	PrinterID       *int64    `gorm:"column:printer_id;index"`
	SlotNumber      *int      `gorm:"column:slot_number"`
	StorageLocation *string   `gorm:"column:storage_location"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

func (SpoolModel) TableName() string { return "spools" }

// SpoolUsageModel is the spool_usages table: the append-only consumption
// ledger, one row per deduction.
type SpoolUsageModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SpoolID   int64     `gorm:"column:spool_id;not null;index"`
	JobID     int64     `gorm:"column:job_id;not null;index"`
	Grams     float64   `gorm:"column:grams;not null"`
	Notes     string    `gorm:"column:notes;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (SpoolUsageModel) TableName() string { return "spool_usages" }

// ModelModel is the models table (an operator-defined printable item
// definition; named ModelModel to avoid colliding with the domain package
// name).
type ModelModel struct {
	ID                    int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DisplayName           string    `gorm:"column:display_name;not null"`
	EstimatedBuildSec     int64     `gorm:"column:estimated_build_sec;not null"`
	DefaultMaterial       string    `gorm:"column:default_material"`
	ColorRequirementsJSON string    `gorm:"column:color_requirements_json;type:text"`
	ThumbnailPath         *string   `gorm:"column:thumbnail_path"`
	ArtifactID            *int64    `gorm:"column:artifact_id;index"`
	CreatedAt             time.Time `gorm:"column:created_at;not null"`
	UpdatedAt             time.Time `gorm:"column:updated_at;not null"`
}

func (ModelModel) TableName() string { return "models" }

// PrintArtifactModel is the print_artifacts table.
type PrintArtifactModel struct {
	ID                          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Format                      string    `gorm:"column:format;not null"`
	FileID                      string    `gorm:"column:file_id;not null;unique"`
	OriginalName                string    `gorm:"column:original_name;not null"`
	StoragePath                 string    `gorm:"column:storage_path;not null"`
	ContentHash                 string    `gorm:"column:content_hash;index"`
	EstimatedPrintSec           int64     `gorm:"column:estimated_print_sec;not null;default:0"`
	TotalGrams                  float64   `gorm:"column:total_grams;not null;default:0"`
	PerSlotFilamentJSON         string    `gorm:"column:per_slot_filament_json;type:text"`
	ThumbnailPath               *string   `gorm:"column:thumbnail_path"`
	CompatiblePrinterModelsJSON string    `gorm:"column:compatible_printer_models_json;type:text"`
	BedWidthMM                  float64   `gorm:"column:bed_width_mm;not null;default:0"`
	BedDepthMM                  float64   `gorm:"column:bed_depth_mm;not null;default:0"`
	SupportsUsed                bool      `gorm:"column:supports_used;not null;default:false"`
	ModelID                     *int64    `gorm:"column:model_id;index"`
	CreatedAt                   time.Time `gorm:"column:created_at;not null"`
}

func (PrintArtifactModel) TableName() string { return "print_artifacts" }

// JobModel is the jobs table.
type JobModel struct {
	ID                    int64      `gorm:"column:id;primaryKey;autoIncrement"`
	ModelID               *int64     `gorm:"column:model_id;index"`
	ItemName              string     `gorm:"column:item_name;not null"`
	Quantity              int        `gorm:"column:quantity;not null;default:1"`
	Priority              int        `gorm:"column:priority;not null;index"`
	EffectiveDurationSec  int64      `gorm:"column:effective_duration_sec;not null"`
	ColorRequirementsJSON string     `gorm:"column:color_requirements_json;type:text"`
	Material              string     `gorm:"column:material"`
	Hold                  bool       `gorm:"column:hold;not null;default:false"`
	DueDate               *time.Time `gorm:"column:due_date;index"`
	PrinterID             *int64     `gorm:"column:printer_id;index"`
	ScheduledStart        *time.Time `gorm:"column:scheduled_start"`
	ScheduledEnd          *time.Time `gorm:"column:scheduled_end"`
	ActualStart           *time.Time `gorm:"column:actual_start"`
	ActualEnd             *time.Time `gorm:"column:actual_end"`
	IsLocked              bool       `gorm:"column:is_locked;not null;default:false"`
	EstimatedCost         float64    `gorm:"column:estimated_cost;not null;default:0"`
	SuggestedPrice        float64    `gorm:"column:suggested_price;not null;default:0"`
	MatchScore            *int       `gorm:"column:match_score"`
	Notes                 string     `gorm:"column:notes;type:text"`
	FailReason            *string    `gorm:"column:fail_reason"`
	ArtifactID            *int64     `gorm:"column:artifact_id;index"`
	Status                string     `gorm:"column:status;not null;index"`
	CreatedAt             time.Time  `gorm:"column:created_at;not null;index"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;not null"`
}

func (JobModel) TableName() string { return "jobs" }

// SchedulerRunModel is the scheduler_runs table.
type SchedulerRunModel struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RanAt          time.Time `gorm:"column:ran_at;not null;index"`
	ScheduledCount int       `gorm:"column:scheduled_count;not null;default:0"`
	SkippedCount   int       `gorm:"column:skipped_count;not null;default:0"`
	SetupBlocks    int       `gorm:"column:setup_blocks;not null;default:0"`
	NotesJSON      string    `gorm:"column:notes_json;type:text"`
}

func (SchedulerRunModel) TableName() string { return "scheduler_runs" }

// PrintRecordModel is the print_records table.
type PrintRecordModel struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	PrinterID    int64      `gorm:"column:printer_id;not null;index"`
	Filename     string     `gorm:"column:filename;not null;index"`
	ProgressPct  *float64   `gorm:"column:progress_pct"`
	RemainingMin *int       `gorm:"column:remaining_min"`
	CurrentLayer *int       `gorm:"column:current_layer"`
	TotalLayers  *int       `gorm:"column:total_layers"`
	Status       string     `gorm:"column:status;not null;index"`
	JobID        *int64     `gorm:"column:job_id;index"`
	StartedAt    time.Time  `gorm:"column:started_at;not null"`
	EndedAt      *time.Time `gorm:"column:ended_at"`
}

func (PrintRecordModel) TableName() string { return "print_records" }

// AlertModel is the alerts table.
type AlertModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Kind       string    `gorm:"column:kind;not null;index"`
	Severity   string    `gorm:"column:severity;not null"`
	TargetUser int64     `gorm:"column:target_user;not null;index"`
	Title      string    `gorm:"column:title;not null"`
	Message    string    `gorm:"column:message;type:text"`
	Read       bool      `gorm:"column:read;not null;default:false"`
	Dismissed  bool      `gorm:"column:dismissed;not null;default:false"`
	PrinterID  *int64    `gorm:"column:printer_id;index"`
	JobID      *int64    `gorm:"column:job_id;index"`
	SpoolID    *int64    `gorm:"column:spool_id;index"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index"`
}

func (AlertModel) TableName() string { return "alerts" }

// AlertPreferenceModel is the alert_preferences table, unique per
// (user_id, kind).
type AlertPreferenceModel struct {
	ID              int64   `gorm:"column:id;primaryKey;autoIncrement"`
	UserID          int64   `gorm:"column:user_id;not null;uniqueIndex:idx_pref_unique,priority:1"`
	Kind            string  `gorm:"column:kind;not null;uniqueIndex:idx_pref_unique,priority:2"`
	InAppEnabled    bool    `gorm:"column:in_app_enabled;not null;default:true"`
	EmailEnabled    bool    `gorm:"column:email_enabled;not null;default:false"`
	PushEnabled     bool    `gorm:"column:push_enabled;not null;default:false"`
	WebhookEnabled  bool    `gorm:"column:webhook_enabled;not null;default:false"`
	QuietHoursStart *string `gorm:"column:quiet_hours_start"`
	QuietHoursEnd   *string `gorm:"column:quiet_hours_end"`
	DigestBatching  bool    `gorm:"column:digest_batching;not null;default:false"`
}

func (AlertPreferenceModel) TableName() string { return "alert_preferences" }

// AuditEntryModel is the audit_entries table.
type AuditEntryModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp  time.Time `gorm:"column:timestamp;not null;index"`
	Action     string    `gorm:"column:action;not null;index"`
	EntityKind string    `gorm:"column:entity_kind;not null;index"`
	EntityID   string    `gorm:"column:entity_id;not null"`
	Actor      string    `gorm:"column:actor"`
	SourceIP   string    `gorm:"column:source_ip"`
	DetailJSON string    `gorm:"column:detail_json;type:text"`
}

func (AuditEntryModel) TableName() string { return "audit_entries" }
