// Package hmscodes decodes vendor-specific structured error identifiers
// (the "attr_code" format `AABBCCDD_EEFFGGHH`) into human messages and
// severity, component R. Exact codes are served from a lookup table;
// unrecognized codes fall back to a structural decode of the identifier's
// device × module × error-class × sub-code layout.
//
// Grounded directly on the device/error-class dictionaries and the
// lookup_hms_code structural-decode algorithm of the vendor error code
// database this fleet control plane was distilled from.
package hmscodes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/printfleet/printfleet/internal/domain/alert"
)

// devices maps the attr_code's AA byte to a human device name.
var devices = map[int]string{
	0x01: "Motion Controller",
	0x02: "Mainboard",
	0x03: "AMS",
	0x04: "AMS Hub",
	0x05: "AMS Hub",
	0x06: "Filament System",
	0x07: "Camera/XCam",
	0x08: "MC Module",
	0x09: "Toolhead Board",
	0x0A: "Toolhead",
	0x0B: "Nozzle",
	0x0C: "Extruder",
	0x0D: "Extruder",
	0x0E: "Bed Leveling",
	0x0F: "Purge System",
	0x10: "Chamber",
	0x11: "Power Supply",
	0x12: "Heatbed",
	0x13: "WiFi Module",
	0x14: "Display",
}

type deviceClass struct {
	device int
	class  int
}

// errorClasses maps (device, error_class) pairs from the attr_code's CC
// byte to a human description.
var errorClasses = map[deviceClass]string{
	{0x03, 0x01}: "filament runout",
	{0x03, 0x02}: "filament broken or unable to feed",
	{0x03, 0x03}: "filament tangled",
	{0x03, 0x04}: "RFID read failure",
	{0x03, 0x05}: "filament buffer error",
	{0x03, 0x06}: "environment sensor error",
	{0x03, 0x07}: "AMS assist motor error",
	{0x03, 0x08}: "AMS slot detect error",
	{0x03, 0x09}: "AMS hub connector error",
	{0x03, 0x0A}: "AMS lid open",
	{0x03, 0x0D}: "build plate error",
	{0x05, 0x01}: "communication error",
	{0x05, 0x02}: "cutter failure",
	{0x05, 0x03}: "motor overload",
	{0x05, 0x04}: "filament load/unload failure",
	{0x05, 0x05}: "filament buffer full",
	{0x05, 0x06}: "filament mapping error",
	{0x0C, 0x01}: "temperature abnormal",
	{0x0C, 0x02}: "heating failure",
	{0x0C, 0x03}: "nozzle clog detected",
	{0x0C, 0x04}: "motor stall or jam",
	{0x0C, 0x05}: "filament sensor error",
	{0x0C, 0x06}: "purge system error",
	{0x0D, 0x01}: "temperature abnormal",
	{0x0D, 0x02}: "heating failure",
	{0x0D, 0x03}: "nozzle clog detected",
	{0x12, 0x01}: "temperature abnormal",
	{0x12, 0x02}: "heating failure",
	{0x12, 0x03}: "adhesion failure detected",
	{0x12, 0x04}: "force sensor error",
	{0x12, 0x05}: "bed leveling failure",
	{0x01, 0x01}: "motor stall or endstop error",
	{0x01, 0x02}: "homing failure",
	{0x01, 0x03}: "vibration sensor error",
	{0x01, 0x04}: "calibration failure",
	{0x01, 0x05}: "belt tension error",
	{0x01, 0x06}: "resonance frequency error",
	{0x01, 0x07}: "stepper driver error",
	{0x02, 0x01}: "memory/storage error",
	{0x02, 0x02}: "firmware error",
	{0x02, 0x03}: "communication bus error",
	{0x02, 0x04}: "power supply error",
	{0x02, 0x05}: "LED controller error",
	{0x02, 0x06}: "watchdog reset",
	{0x02, 0x07}: "temperature sensor bus error",
	{0x07, 0x01}: "inspection/detection error",
	{0x07, 0x02}: "lidar error",
	{0x07, 0x03}: "print quality issue detected",
	{0x07, 0x04}: "camera feed error",
	{0x07, 0x05}: "AI detection model error",
	{0x0A, 0x01}: "toolhead communication error",
	{0x0A, 0x02}: "nozzle probe error",
	{0x0A, 0x03}: "front cover removed",
	{0x0A, 0x04}: "toolhead board error",
	{0x10, 0x01}: "temperature or fan error",
	{0x10, 0x02}: "door opened during print",
	{0x10, 0x03}: "exhaust fan error",
	{0x10, 0x04}: "heater error",
}

// knownCodes is a curated subset of the full HMS code table (format
// AABBCCDD_EEFFGGHH), covering most device categories for exact-match
// lookup before falling back to structural decode.
var knownCodes = map[string]string{
	"05010100_00010001": "AMS1: Hub communication error. Check AMS cable connection.",
	"05010200_00010001": "AMS1: Cutter failed. Retry or check cutter mechanism.",
	"05010300_00010001": "AMS1: Motor current overload on slot 1. Check for filament jam.",
	"05010400_00030001": "AMS1: Filament load/unload failure on slot 1. Check PTFE path and filament tip.",
	"03010100_00010001": "AMS1 Slot 1: Filament has run out. Load new filament.",
	"03010200_00010001": "AMS1 Slot 1: Filament broken or tangled. Check spool.",
	"03010300_00010001": "AMS1 Slot 1: Filament tangled on spool.",
	"03010400_00010001": "AMS1 Slot 1: RFID tag read failure.",
	"03010A00_00010001": "AMS1: Lid open. Close the AMS lid to continue.",
	"03000D00_00010001": "Build plate may not be properly placed. Check all four corners are aligned.",
	"03000200_00010002": "Nozzle temperature too high. Possible thermal runaway.",
	"0C010100_00010001": "Nozzle temperature abnormally high. Possible thermal runaway.",
	"0C010200_00010001": "Nozzle heating failed. Check heater cartridge and thermistor.",
	"0C010300_00010001": "Nozzle clog detected. Clean or replace nozzle.",
	"0C010400_00010001": "Extruder motor stalled. Check for filament jam in gears.",
	"0C010500_00010001": "Filament sensor error. Filament presence uncertain.",
	"0C000200_00010001": "Spaghetti failure detected by AI monitoring.",
	"12010100_00010002": "Heatbed temperature too high. Possible thermal runaway.",
	"12010200_00010001": "Heatbed heating failed. Check heater pad.",
	"12010300_00010001": "Adhesion failure detected on heatbed.",
	"12010500_00010001": "Bed leveling failed. Clean nozzle and retry.",
	"01010100_00010001": "X-axis motor stall. Check for obstructions.",
	"01020100_00010001": "Homing failed. Check endstops and axis movement.",
	"01030100_00010001": "Vibration sensor error. Accelerometer not responding.",
	"02010300_00010001": "Network connection lost.",
	"02040100_00010002": "Power supply overcurrent detected.",
	"02060100_00010001": "Watchdog reset occurred. System recovered.",
	"07010200_00010001": "Spaghetti detection triggered. Print failure likely.",
	"07020100_00010001": "Lidar scan failed. Clean lidar window.",
	"0A010100_00010001": "Toolhead communication lost. Check ribbon cable.",
	"0A010300_00010001": "Front cover removed. Remount to continue.",
	"10010100_00010001": "Chamber temperature too high.",
	"10020100_00010001": "Door opened during print. Print paused.",
	"11010200_00010001": "Power supply overtemperature protection activated.",
	"13010200_00010002": "WiFi signal strength too low.",
}

// printErrorCodes is a curated subset of the shorter XXXX_YYYY "print
// action" error codes returned in MQTT print command responses.
var printErrorCodes = map[string]string{
	"0300_8001": "Printing paused by user.",
	"0300_8002": "First layer defects detected by Micro Lidar. Check print quality before continuing.",
	"0300_8003": "Spaghetti defects detected by AI monitoring. Check print quality.",
	"0300_8004": "Filament ran out. Load new filament.",
	"0300_8007": "Unfinished print from power loss. Resume if model is still adhered.",
	"0300_8016": "Nozzle clogged with filament. Cancel and clean nozzle.",
	"0300_4000": "Printing stopped: Z-axis homing failed.",
	"0300_4006": "Nozzle is clogged.",
	"0300_4008": "AMS failed to change filament.",
	"0300_400C": "Printing was cancelled.",
	"0300_400D": "Resume failed after power loss.",
	"0500_4003": "Unable to parse print file. Resend job.",
	"0500_4006": "Insufficient storage. Restore factory settings to free space.",
	"0500_4037": "Sliced file incompatible with printer model.",
	"0700_8001": "AMS: Failed to cut filament. Check cutter.",
	"0700_8011": "AMS: Filament ran out. Insert new filament.",
	"0700_4001": "AMS disabled but filament still loaded. Unload and use spool holder.",
	"1200_8011": "AMS Lite: Filament ran out.",
	"0C00_8002": "Spaghetti failure detected.",
}

// Code is a decoded HMS/print error, including the severity it should be
// surfaced with.
type Code struct {
	RawCode  string
	Message  string
	Severity alert.Severity
}

// Lookup decodes a structured HMS code (AABBCCDD_EEFFGGHH) or a print
// action code (XXXX_YYYY). It checks the exact-match tables first, then
// falls back to structural decode for the longer HMS format. Unmatched
// short codes report as unknown rather than being mis-decoded as HMS.
func Lookup(code string) Code {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	if msg, ok := knownCodes[normalized]; ok {
		return Code{RawCode: normalized, Message: msg, Severity: classify(msg)}
	}
	if msg, ok := printErrorCodes[normalized]; ok {
		return Code{RawCode: normalized, Message: msg, Severity: classify(msg)}
	}

	if !strings.Contains(normalized, "_") || len(normalized) < 17 {
		renorm := strings.NewReplacer("-", "_", " ", "").Replace(normalized)
		if msg, ok := printErrorCodes[renorm]; ok {
			return Code{RawCode: normalized, Message: msg, Severity: classify(msg)}
		}
		return Code{RawCode: normalized, Message: fmt.Sprintf("Unknown HMS error: %s", normalized), Severity: alert.SeverityWarning}
	}

	return structuralDecode(normalized)
}

func structuralDecode(code string) Code {
	parts := strings.SplitN(code, "_", 2)
	if len(parts) != 2 {
		return Code{RawCode: code, Message: fmt.Sprintf("HMS error: %s", code), Severity: alert.SeverityWarning}
	}
	attrInt, errA := strconv.ParseUint(parts[0], 16, 32)
	codeInt, errC := strconv.ParseUint(parts[1], 16, 32)
	if errA != nil || errC != nil {
		return Code{RawCode: code, Message: fmt.Sprintf("HMS error: %s", code), Severity: alert.SeverityWarning}
	}

	deviceID := int((attrInt >> 24) & 0xFF)
	module := int((attrInt >> 16) & 0xFF)
	errorClass := int((attrInt >> 8) & 0xFF)
	codeLow := int(codeInt & 0xFFFF)

	deviceName, ok := devices[deviceID]
	if !ok {
		deviceName = fmt.Sprintf("Device 0x%02X", deviceID)
	}

	errorDesc, ok := errorClasses[deviceClass{deviceID, errorClass}]
	if !ok {
		errorDesc = fmt.Sprintf("error 0x%02X", errorClass)
	}

	label := deviceName
	if (deviceID == 0x03 || deviceID == 0x05) && module > 0 {
		label = fmt.Sprintf("AMS%d", module)
	} else if module > 0 {
		label = fmt.Sprintf("%s (unit %d)", deviceName, module)
	}

	msg := fmt.Sprintf("%s: %s", label, errorDesc)
	if codeLow >= 1 && codeLow <= 4 && (deviceID == 0x03 || deviceID == 0x05) {
		msg = fmt.Sprintf("%s (slot %d)", msg, codeLow)
	}

	return Code{RawCode: code, Message: msg + ".", Severity: classify(errorDesc)}
}

// classify derives a severity from keywords in the decoded message, since
// the lookup table does not carry an explicit severity column.
func classify(text string) alert.Severity {
	lower := strings.ToLower(text)
	critical := []string{"thermal runaway", "overcurrent", "fire", "short circuit", "clog", "stall", "spaghetti", "power loss"}
	for _, kw := range critical {
		if strings.Contains(lower, kw) {
			return alert.SeverityCritical
		}
	}
	info := []string{"notification", "update available", "status update"}
	for _, kw := range info {
		if strings.Contains(lower, kw) {
			return alert.SeverityInfo
		}
	}
	return alert.SeverityWarning
}

// Count returns the number of codes in the curated lookup tables, for
// diagnostics/tests mirroring the original's get_code_count.
func Count() int {
	return len(knownCodes) + len(printErrorCodes)
}
