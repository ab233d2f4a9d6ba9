package domain

import "fmt"

// Mode selects the coaching prompt for a turn.
type Mode string

const (
	ModeFriction Mode = "friction"
	ModeGuidance Mode = "guidance"
)

// ParseMode converts a persisted mode name. Empty input maps to friction.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFriction:
		return ModeFriction, nil
	case ModeGuidance:
		return ModeGuidance, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// FrictionState tracks progress toward unlocking guidance.
// 0 <= Progress <= Threshold; GuidanceReady implies Progress reached Threshold.
type FrictionState struct {
	Progress      int
	Threshold     int
	GuidanceReady bool
	Mode          Mode
}
