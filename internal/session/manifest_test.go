package session

import "testing"

func TestManifestFeaturesContainsCoreFields(t *testing.T) {
	f := DefaultManifest().Features()
	for _, want := range []string{"protocolName:PURCMC", "officialShortName:PurCMCRenderer", "maxWorkspaces:8"} {
		if !containsLine(f, want) {
			t.Fatalf("expected features to contain %q, got:\n%s", want, f)
		}
	}
}

func TestManifestWithChallengeCodeAddsField(t *testing.T) {
	m := DefaultManifest().WithChallengeCode("com.example.app")
	if m.ChallengeCode == "" {
		t.Fatalf("expected a non-empty challenge code")
	}
	if !containsLine(m.Features(), "challengeCode:"+m.ChallengeCode) {
		t.Fatalf("expected rendered features to include the challenge code")
	}
}

func containsLine(body, want string) bool {
	for _, line := range splitLines(body) {
		if line == want {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
