package logger

import "testing"

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"TRACE":   LevelDebug,
		"info":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSetLevelFilters(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("error")
	if enabled(LevelWarn) {
		t.Error("warn should be filtered at error level")
	}
	if !enabled(LevelError) {
		t.Error("error should pass at error level")
	}
	SetLevel("debug")
	if !enabled(LevelDebug) {
		t.Error("debug should pass at debug level")
	}
}

func TestTagUsesPrefix(t *testing.T) {
	t.Cleanup(func() { SetPrefix("") })
	if tag() != "" {
		t.Fatalf("empty prefix should give empty tag, got %q", tag())
	}
	SetPrefix("chat")
	if tag() != "[chat] " {
		t.Fatalf("tag: %q", tag())
	}
}
