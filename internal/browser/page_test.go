package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantFatal bool
	}{
		{name: "target closed", err: fmt.Errorf("goto: %w", playwright.ErrTargetClosed), wantFatal: true},
		{name: "timeout", err: fmt.Errorf("wait: %w", playwright.ErrTimeout)},
		{name: "driver message", err: errors.New("Browser has been closed"), wantFatal: true},
		{name: "plain", err: errors.New("net::ERR_CONNECTION_REFUSED")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if errors.Is(got, hlr.ErrSessionFatal) != tt.wantFatal {
				t.Fatalf("mapError(%v) = %v; fatal=%v", tt.err, got, tt.wantFatal)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("mapError lost the cause: %v", got)
			}
		})
	}
	if mapError(nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestMillisClipsToDeadline(t *testing.T) {
	t.Parallel()

	if got := *millis(context.Background(), 3*time.Second); got != 3000 {
		t.Fatalf("unexpected timeout: %v", got)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if got := *millis(ctx, 3*time.Second); got > 200 {
		t.Fatalf("expected timeout clipped to deadline, got %v", got)
	}
}
