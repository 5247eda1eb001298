package core

import "testing"

func TestParseEnvironment(t *testing.T) {
	cases := map[string]Environment{
		"production": Production,
		"PROD":       Production,
		" staging ":  Staging,
		"test":       Testing,
		"":           Development,
		"whatever":   Development,
	}
	for in, want := range cases {
		if got := ParseEnvironment(in); got != want {
			t.Errorf("ParseEnvironment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnvironmentVerbose(t *testing.T) {
	if Production.Verbose() || Staging.Verbose() {
		t.Error("production and staging must not be verbose")
	}
	if !Development.Verbose() || !Testing.Verbose() {
		t.Error("development and testing must be verbose")
	}
}
