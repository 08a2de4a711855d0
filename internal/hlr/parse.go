package hlr

import (
	"bufio"
	"strings"
)

const (
	// OperatorLabel marks the provider line and doubles as the success marker.
	OperatorLabel = "Operator"
	// LocationLabel marks the location line.
	LocationLabel = "HLR"
	// ErrorMarker is the explicit failure marker the target prints.
	ErrorMarker = "ERROR"
)

// Parsed holds the labeled fields extracted from result text.
type Parsed struct {
	Provider     *string
	LocationCode *string
}

// ParseResult extracts the provider and location lines from raw text.
//
// Lines are scanned in order and later matches overwrite earlier ones. A line
// mentioning both labels counts as a provider line. Lines without a ':' are
// ignored, so malformed input yields nil fields rather than an error.
func ParseResult(text string) Parsed {
	var out Parsed
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, OperatorLabel):
			if v, ok := valueAfterColon(line); ok {
				out.Provider = &v
			}
		case strings.Contains(line, LocationLabel):
			if v, ok := valueAfterColon(line); ok {
				out.LocationCode = &v
			}
		}
	}
	return out
}

func valueAfterColon(line string) (string, bool) {
	_, after, ok := strings.Cut(line, ":")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(after), true
}
