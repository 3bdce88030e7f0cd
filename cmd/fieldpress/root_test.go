package main

import "testing"

func TestCLIVersionNeedsNoConfig(t *testing.T) {
	out, _, err := runCLI(t, []string{"version"}, "")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "fieldpress dev")
}
