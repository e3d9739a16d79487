package domain

import "strings"

// StatusFlag classifies a projected date of the depletion report.
type StatusFlag string

const (
	StatusNone  StatusFlag = ""
	StatusAlert StatusFlag = "Alert"
	StatusOrder StatusFlag = "Order"
)

var statusFlags = map[string]StatusFlag{
	"alert": StatusAlert,
	"order": StatusOrder,
	"none":  StatusNone,
	"ok":    StatusNone,
}

// Label returns a human-readable label for the flag.
func (s StatusFlag) Label() string {
	if s == StatusNone {
		return "OK"
	}
	return string(s)
}

// ParseStatusFlag returns the flag for a given label (case-insensitive).
func ParseStatusFlag(label string) (StatusFlag, bool) {
	flag, ok := statusFlags[strings.ToLower(strings.TrimSpace(label))]

	return flag, ok
}
