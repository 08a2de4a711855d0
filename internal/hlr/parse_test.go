package hlr_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
)

func ptr(s string) *string { return &s }

func TestParseResult(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want hlr.Parsed
	}{
		{
			name: "both labels",
			in:   "Operator: Telkomsel\nHLR: Jakarta Pusat",
			want: hlr.Parsed{Provider: ptr("Telkomsel"), LocationCode: ptr("Jakarta Pusat")},
		},
		{
			name: "values are trimmed",
			in:   "Operator :   Indosat Ooredoo  \r\n  HLR:\tSurabaya \n",
			want: hlr.Parsed{Provider: ptr("Indosat Ooredoo"), LocationCode: ptr("Surabaya")},
		},
		{
			name: "only the first colon splits",
			in:   "Operator: XL: Axiata",
			want: hlr.Parsed{Provider: ptr("XL: Axiata")},
		},
		{
			name: "neither label",
			in:   "ERROR: number not found",
			want: hlr.Parsed{},
		},
		{
			name: "empty input",
			in:   "",
			want: hlr.Parsed{},
		},
		{
			name: "last match wins",
			in:   "Operator: First\nHLR: A\nOperator: Second\nHLR: B",
			want: hlr.Parsed{Provider: ptr("Second"), LocationCode: ptr("B")},
		},
		{
			name: "label without colon is ignored",
			in:   "HLR Lookup\nOperator: Smartfren",
			want: hlr.Parsed{Provider: ptr("Smartfren")},
		},
		{
			name: "line with both labels sets provider",
			in:   "Operator HLR: Tri",
			want: hlr.Parsed{Provider: ptr("Tri")},
		},
		{
			name: "empty value is still a match",
			in:   "Operator:",
			want: hlr.Parsed{Provider: ptr("")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hlr.ParseResult(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ParseResult(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestResultFromText(t *testing.T) {
	res := hlr.ResultFromText("Operator: Telkomsel\nHLR: Jakarta Pusat")
	if !res.Succeeded {
		t.Fatalf("expected success: %#v", res)
	}
	if hlr.Value(res.Provider) != "Telkomsel" || hlr.Value(res.LocationCode) != "Jakarta Pusat" {
		t.Fatalf("unexpected result: %#v", res)
	}

	res = hlr.ResultFromText("ERROR: invalid number")
	if res.Succeeded || res.Provider != nil || res.LocationCode != nil {
		t.Fatalf("expected parse mismatch to be data, got %#v", res)
	}
	if res.RawText != "ERROR: invalid number" {
		t.Fatalf("raw text not preserved: %q", res.RawText)
	}
}

func TestFailed(t *testing.T) {
	if diff := cmp.Diff(hlr.Result{}, hlr.Failed()); diff != "" {
		t.Fatalf("terminal failure mismatch (-want +got):\n%s", diff)
	}
}
