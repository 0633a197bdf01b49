package main

import "testing"

func TestEnvStrFallback(t *testing.T) {
	t.Setenv("SIMPLEGEN_TEST_KEY", "")
	if got := envStr("SIMPLEGEN_TEST_KEY", "def"); got != "def" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("SIMPLEGEN_TEST_KEY", "set")
	if got := envStr("SIMPLEGEN_TEST_KEY", "def"); got != "set" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestOrInt(t *testing.T) {
	if orInt(0, 7) != 7 || orInt(3, 7) != 3 {
		t.Fatalf("orInt mismatch")
	}
}

func TestBuildRootCmdHasSubcommands(t *testing.T) {
	root := buildRootCmd()
	want := map[string]bool{"serve": false, "run [prompts...]": false, "chat": false, "models": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Use]; ok {
			want[c.Use] = true
		}
	}
	for use, found := range want {
		if !found {
			t.Fatalf("missing subcommand %q", use)
		}
	}
}
