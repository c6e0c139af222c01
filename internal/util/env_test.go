package util

import (
	"testing"
	"time"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("KGOPS_TEST_INT", "12")
	t.Setenv("KGOPS_TEST_BAD_INT", "twelve")
	t.Setenv("KGOPS_TEST_FLOAT", "0.75")
	t.Setenv("KGOPS_TEST_BOOL", "YES")
	t.Setenv("KGOPS_TEST_DURATION", "90s")
	t.Setenv("KGOPS_TEST_EMPTY", "")

	if got := GetEnvInt("KGOPS_TEST_INT", 1); got != 12 {
		t.Fatalf("GetEnvInt = %d, want 12", got)
	}
	if got := GetEnvInt("KGOPS_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("GetEnvInt fallback = %d, want 7", got)
	}
	if got := GetEnvNumeric("KGOPS_TEST_FLOAT", 0.1); got != 0.75 {
		t.Fatalf("GetEnvNumeric = %v, want 0.75", got)
	}
	if !GetEnvBool("KGOPS_TEST_BOOL", false) {
		t.Fatal("GetEnvBool = false, want true")
	}
	if got := GetEnvDuration("KGOPS_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Fatalf("GetEnvDuration = %v, want 90s", got)
	}
	if got := GetEnvString("KGOPS_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Fatalf("GetEnvString = %q, want fallback", got)
	}
	if got := GetEnv("KGOPS_TEST_UNSET"); got != "" {
		t.Fatalf("GetEnv = %q, want empty", got)
	}
}
