// Package adapter defines the ProtocolAdapter capability set realized by
// the concrete transport variants under internal/adapters/protocol.
package adapter

import (
	"context"
	"time"
)

// DeviceState is the normalized hardware state reported in a StatusFrame.
type DeviceState string

const (
	DeviceIdle     DeviceState = "idle"
	DevicePrepare  DeviceState = "prepare"
	DeviceRunning  DeviceState = "running"
	DevicePaused   DeviceState = "paused"
	DeviceFailed   DeviceState = "failed"
	DeviceFinished DeviceState = "finished"
)

// LoadedSlot is one AMS/feeder slot's hardware-reported contents.
type LoadedSlot struct {
	SlotNumber    int
	Material      *string
	ColorHex      *string
	RemainingPct  *float64
	RFIDTag       *string
}

// ErrorCode is a vendor-specific structured error identifier, decoded by
// component R (internal/domain/hmscodes) into a human message and severity.
type ErrorCode struct {
	AttrCode string // "AABBCCDD_EEFFGGHH" structured identifier
	RawText  string
}

// StatusFrame is a normalized snapshot of a printer's current state.
// Every numeric field is a pointer: nil means "unknown".
type StatusFrame struct {
	PrinterID       int64
	ReceivedAt      time.Time
	State           DeviceState
	BedTempC        *float64
	BedTargetC      *float64
	NozzleTempC     *float64
	NozzleTargetC   *float64
	FanSpeedPct     *float64
	ProgressPct     *float64
	RemainingMin    *int
	CurrentLayer    *int
	TotalLayers     *int
	Filename        string
	LoadedSlots     []LoadedSlot
	Errors          []ErrorCode
}

// ControlCommand names a control operation sent to Printer.
type ControlCommand string

// UploadOptions configures an artifact upload.
type UploadOptions struct {
	RemoteName string
}

// StartOptions configures a start-print command.
type StartOptions struct {
	RemoteName string
	UseAMS     bool
}

// Printer is the uniform capability set every vendor transport variant
// implements.
type Printer interface {
	// Connect establishes the transport and returns after the first
	// StatusFrame or a deadline. It is not idempotent: each call opens a
	// new transport and reader goroutine without closing an earlier one.
	Connect(ctx context.Context, sink chan<- StatusFrame) error
	// Disconnect tears down cleanly; safe to call from any state.
	Disconnect(ctx context.Context) error

	Upload(ctx context.Context, artifactBytes []byte, remoteName string) error
	StartPrint(ctx context.Context, opts StartOptions) error

	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	SetFanSpeed(ctx context.Context, pct int) error
	SetLights(ctx context.Context, on bool) error
	SkipObjects(ctx context.Context, objectIDs []string) error

	// TestConnection is a static probe that returns reachability without
	// binding a session.
	TestConnection(ctx context.Context) error
}

// Credentials carries the decrypted transport coordinates for one printer.
// Kept out of persistence; Sealer.Open produces this transiently per
// Connect/TestConnection call.
type Credentials struct {
	Host   string
	Serial string
	Secret string // message bus: "serial|access_code"; file session: "username|password"; HTTP poll: API key
}
