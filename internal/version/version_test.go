// ABOUTME: Tests for version constants
// ABOUTME: Ensures product identity is properly defined
package version

import (
	"strings"
	"testing"
)

func TestVersionDefined(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if Product == "" {
		t.Error("Product should not be empty")
	}
	if Manufacturer == "" {
		t.Error("Manufacturer should not be empty")
	}
}

func TestVersionFormat(t *testing.T) {
	// Expect something like "0.1.0" or "dev", never a placeholder.
	for _, placeholder := range []string{"TODO", "FIXME", "XXX"} {
		if strings.Contains(Version, placeholder) {
			t.Errorf("Version contains placeholder %q", placeholder)
		}
	}
	if len(Version) > 100 {
		t.Error("Version string is unreasonably long")
	}
}
