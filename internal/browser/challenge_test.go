package browser_test

import (
	"testing"

	"github.com/hlrcheck/hlr-batch/internal/browser"
)

func TestDetectChallenge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		html       string
		wantMarker string
		want       bool
	}{
		{
			name:       "cloudflare title",
			html:       `<html><head><title>Just a moment...</title></head><body></body></html>`,
			wantMarker: "title:just a moment",
			want:       true,
		},
		{
			name:       "challenge form without title",
			html:       `<html><body><form id="challenge-form" action="/"></form></body></html>`,
			wantMarker: "element:#challenge-form",
			want:       true,
		},
		{
			name:       "turnstile iframe",
			html:       `<html><body><iframe src="https://challenges.cloudflare.com/cdn-cgi/x"></iframe></body></html>`,
			wantMarker: "element:iframe[src*='challenges.cloudflare.com']",
			want:       true,
		},
		{
			name: "target form",
			html: `<html><head><title>Cek HLR Lokasi HP</title></head><body><input id="msisdn"><button id="find"></button><pre class="message"></pre></body></html>`,
		},
		{
			name: "empty document",
			html: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, ok := browser.DetectChallenge(tt.html)
			if ok != tt.want || marker != tt.wantMarker {
				t.Fatalf("DetectChallenge() = %q, %v; want %q, %v", marker, ok, tt.wantMarker, tt.want)
			}
		})
	}
}
