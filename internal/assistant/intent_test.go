package assistant

import (
	"strings"
	"testing"
)

func TestShouldRespond(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"Hey Indi, what's left today", true},
		{"@indi add milk", true},
		{"ask the assistant", true},
		{"anyone seen my keys?", true},
		{"Add bread to shopping", true},
		{"remind me at 5", true},
		{"What's due this week", true},
		{"list: chores", true},
		{"lol ok", false},
		{"I love indivisible", false},
		{"   ", false},
		{"thanks for doing the dishes", false},
	}
	for _, tt := range tests {
		if got := ShouldRespond(tt.content); got != tt.want {
			t.Errorf("ShouldRespond(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestWelcomeMessage(t *testing.T) {
	msg := WelcomeMessage("Alex", []string{"Sam"})
	if !strings.HasPrefix(msg, "Hey Alex! I'm Indi") {
		t.Errorf("welcome should greet Alex: %q", msg)
	}
	if !strings.Contains(msg, "help you and Sam manage tasks") {
		t.Errorf("welcome should mention Sam: %q", msg)
	}

	solo := WelcomeMessage("", nil)
	if !strings.HasPrefix(solo, "Hey there!") || !strings.Contains(solo, "help you manage tasks") {
		t.Errorf("solo welcome = %q", solo)
	}
}
