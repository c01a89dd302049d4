package gc

import "testing"

// ensureInit makes sure the package singleton is initialized exactly once
// across the whole test binary; Init is idempotent so repeated calls from
// different test functions are safe.
func ensureInit(t *testing.T) {
	t.Helper()
	if err := Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
}
