package mockhlr_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
	"github.com/hlrcheck/hlr-batch/internal/mockhlr"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, string(b)
}

func TestMockHLR_FormStartsDisabled(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(mockhlr.New(mockhlr.Options{}).Handler())
	defer ts.Close()

	status, body := get(t, ts.URL+mockhlr.FormPath)
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	for _, want := range []string{`id="msisdn"`, `id="find"`, `class="message"`, "disabled"} {
		if !strings.Contains(body, want) {
			t.Fatalf("form missing %q:\n%s", want, body)
		}
	}
}

func TestMockHLR_LookupScript(t *testing.T) {
	t.Parallel()

	srv := mockhlr.New(mockhlr.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/api/lookup.js?msisdn=08121234567")
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	if !strings.HasPrefix(body, "window.hlrResult(") || !strings.Contains(body, `Operator: Telkomsel\nHLR: Bandung`) {
		t.Fatalf("unexpected script: %q", body)
	}
	if got := srv.Lookups(); len(got) != 1 || got[0] != "08121234567" {
		t.Fatalf("unexpected lookups: %#v", got)
	}
}

func TestMockHLR_Challenge(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(mockhlr.New(mockhlr.Options{Challenge: true}).Handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/")
	if status != http.StatusForbidden || !strings.Contains(body, "Just a moment") {
		t.Fatalf("expected challenge page, got %d:\n%s", status, body)
	}
}

func TestDefaultResponder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msisdn       string
		wantProvider string
		wantLocation string
	}{
		{msisdn: "08120000000", wantProvider: "Telkomsel", wantLocation: "Jakarta"},
		{msisdn: "08573000000", wantProvider: "Indosat", wantLocation: "Medan"},
		{msisdn: "08990000000", wantProvider: "Tri", wantLocation: "Jakarta"},
		{msisdn: "07000000000"},
		{msisdn: "0812"},
	}
	for _, tt := range tests {
		res := hlr.ResultFromText(mockhlr.DefaultResponder(tt.msisdn))
		if hlr.Value(res.Provider) != tt.wantProvider || hlr.Value(res.LocationCode) != tt.wantLocation {
			t.Fatalf("%s: unexpected result %#v", tt.msisdn, res)
		}
	}
}
