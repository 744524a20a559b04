package protocol

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/printfleet/printfleet/internal/domain/adapter"
)

// wireFrame is the generic report envelope both the MessageBus and HTTPPoll
// variants decode into a normalized adapter.StatusFrame. Fields are
// pointers so a vendor payload that omits a reading round-trips as
// "unknown".
type wireFrame struct {
	State         string      `json:"state"`
	BedTempC      *float64    `json:"bed_temp_c,omitempty"`
	BedTargetC    *float64    `json:"bed_target_c,omitempty"`
	NozzleTempC   *float64    `json:"nozzle_temp_c,omitempty"`
	NozzleTargetC *float64    `json:"nozzle_target_c,omitempty"`
	FanSpeedPct   *float64    `json:"fan_speed_pct,omitempty"`
	ProgressPct   *float64    `json:"progress_pct,omitempty"`
	RemainingMin  *int        `json:"remaining_min,omitempty"`
	CurrentLayer  *int        `json:"current_layer,omitempty"`
	TotalLayers   *int        `json:"total_layers,omitempty"`
	Filename      string      `json:"filename,omitempty"`
	Slots         []wireSlot  `json:"ams_slots,omitempty"`
	Errors        []wireError `json:"errors,omitempty"`
}

type wireSlot struct {
	SlotNumber   int      `json:"slot_number"`
	Material     *string  `json:"material,omitempty"`
	ColorHex     *string  `json:"color_hex,omitempty"`
	RemainingPct *float64 `json:"remaining_pct,omitempty"`
	RFIDTag      *string  `json:"rfid_tag,omitempty"`
}

type wireError struct {
	AttrCode string `json:"attr_code"`
	RawText  string `json:"raw_text,omitempty"`
}

var wireDeviceStates = map[string]adapter.DeviceState{
	"idle":     adapter.DeviceIdle,
	"prepare":  adapter.DevicePrepare,
	"running":  adapter.DeviceRunning,
	"paused":   adapter.DevicePaused,
	"failed":   adapter.DeviceFailed,
	"finished": adapter.DeviceFinished,
}

// toStatusFrame normalizes a wireFrame into the domain StatusFrame,
// stamping PrinterID and ReceivedAt which the wire format itself never
// carries (those are injected by the adapter, not reported by hardware).
func (f wireFrame) toStatusFrame(printerID int64, receivedAt time.Time) adapter.StatusFrame {
	state, ok := wireDeviceStates[strings.ToLower(f.State)]
	if !ok {
		state = adapter.DeviceIdle
	}
	slots := make([]adapter.LoadedSlot, 0, len(f.Slots))
	for _, s := range f.Slots {
		slots = append(slots, adapter.LoadedSlot{
			SlotNumber:   s.SlotNumber,
			Material:     s.Material,
			ColorHex:     s.ColorHex,
			RemainingPct: s.RemainingPct,
			RFIDTag:      s.RFIDTag,
		})
	}
	errs := make([]adapter.ErrorCode, 0, len(f.Errors))
	for _, e := range f.Errors {
		errs = append(errs, adapter.ErrorCode{AttrCode: e.AttrCode, RawText: e.RawText})
	}
	return adapter.StatusFrame{
		PrinterID:     printerID,
		ReceivedAt:    receivedAt,
		State:         state,
		BedTempC:      f.BedTempC,
		BedTargetC:    f.BedTargetC,
		NozzleTempC:   f.NozzleTempC,
		NozzleTargetC: f.NozzleTargetC,
		FanSpeedPct:   f.FanSpeedPct,
		ProgressPct:   f.ProgressPct,
		RemainingMin:  f.RemainingMin,
		CurrentLayer:  f.CurrentLayer,
		TotalLayers:   f.TotalLayers,
		Filename:      f.Filename,
		LoadedSlots:   slots,
		Errors:        errs,
	}
}

// commandEnvelope is the JSON control-command payload sent over either the
// MessageBus command topic or an HTTPPoll control request.
type commandEnvelope struct {
	Command string            `json:"command"`
	Params  map[string]string `json:"params,omitempty"`
}

func intParam(v int) string { return strconv.Itoa(v) }

func encodeChunk(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
