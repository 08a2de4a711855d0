package schema

import (
	"strings"
)

// InputMode selects how the identifier column of an input table is read.
type InputMode string

const (
	// InputModeAuto resolves to prefix or msisdn from the header.
	InputModeAuto InputMode = "auto"
	// InputModePrefix synthesizes a full number from a prefix column.
	InputModePrefix InputMode = "prefix"
	// InputModeMSISDN uses a full-number column verbatim.
	InputModeMSISDN InputMode = "msisdn"
)

// Input column names. Matching is case-insensitive.
const (
	ColumnPrefix   = "prefix"
	ColumnMSISDN   = "msisdn"
	ColumnCity     = "city"
	ColumnSimCard  = "sim_card"
	ColumnProvider = "provider"
)

func NormalizeInputMode(raw string) InputMode {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "prefix", "prefixes":
		return InputModePrefix
	case "msisdn", "number", "numbers":
		return InputModeMSISDN
	default:
		return InputModeAuto
	}
}

// OutputHeader returns the stable CSV header for output records.
func OutputHeader() []string {
	return []string{
		"prefix",
		"city_csv",
		"sim_csv",
		"provider_csv",
		"provider_api",
		"hlr_api",
		"raw_text",
	}
}
