package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hlrcheck/hlr-batch/internal/mockhlr"
)

func main() {
	addr := defaultString("MOCK_HLR_ADDR", ":8080")
	unlockDelay := defaultDuration("MOCK_HLR_UNLOCK_DELAY", 500*time.Millisecond)
	resultDelay := defaultDuration("MOCK_HLR_RESULT_DELAY", 300*time.Millisecond)
	challenge := strings.EqualFold(defaultString("MOCK_HLR_CHALLENGE", "false"), "true")

	fs := flag.NewFlagSet("mock-hlr", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.DurationVar(&unlockDelay, "unlock-delay", unlockDelay, "Delay before the form controls are enabled")
	fs.DurationVar(&resultDelay, "result-delay", resultDelay, "Delay before a lookup result is shown")
	fs.BoolVar(&challenge, "challenge", challenge, "Serve an anti-bot interstitial instead of the form (also supports env: MOCK_HLR_CHALLENGE)")
	_ = fs.Parse(os.Args[1:])

	srv := mockhlr.New(mockhlr.Options{
		UnlockDelay: unlockDelay,
		ResultDelay: resultDelay,
		Challenge:   challenge,
	})

	_, _ = fmt.Fprintf(os.Stdout, "mock-hlr listening on %s (form=%s challenge=%t)\n", addr, mockhlr.FormPath, challenge)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}

func defaultDuration(envVar string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(defaultString(envVar, fallback.String()))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid %s: %v\n", envVar, err)
		os.Exit(2)
	}
	return d
}
