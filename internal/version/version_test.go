package version

import (
	"regexp"
	"testing"
)

func TestCurrentIsPlainSemver(t *testing.T) {
	t.Parallel()

	semver := regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)
	if !semver.MatchString(Current) {
		t.Fatalf("Current=%q must match <major>.<minor>.<patch>", Current)
	}
}
