// Package version holds the release version stamped into hlrcheck builds.
package version

// Current is overridden at build time with
// -ldflags "-X github.com/hlrcheck/hlr-batch/internal/version.Current=x.y.z".
var Current = "0.1.0"
