package prompts

import (
	"strings"
	"testing"

	"github.com/amoisekai/engine/pkg/chat"
)

func TestBuilderOrdersSectionsAndSkipsEmpty(t *testing.T) {
	b := New("system").
		WithSection("Memory", "the well remembers").
		WithSection("Ledger", "   ").
		WithList("World", []string{"season 1", "", "tower floor 3"}).
		WithSectionf("Choice", "chosen: %s", "c2").
		WithFooter("Write the scene.")

	want := []string{"Memory", "World", "Choice"}
	got := b.Titles()
	if len(got) != len(want) {
		t.Fatalf("Titles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("section %d = %q, want %q", i, got[i], want[i])
		}
	}

	user := b.User()
	if !strings.HasPrefix(user, "## Memory\nthe well remembers") {
		t.Errorf("unexpected start: %q", user)
	}
	if !strings.Contains(user, "- season 1\n- tower floor 3") {
		t.Errorf("list not rendered: %q", user)
	}
	if !strings.HasSuffix(user, "Write the scene.") {
		t.Errorf("footer missing: %q", user)
	}
	if strings.Index(user, "## World") > strings.Index(user, "## Choice") {
		t.Error("sections out of order")
	}
}

func TestBuilderBuild(t *testing.T) {
	msgs, err := New("sys").WithSection("A", "body").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != chat.ChatRoleSystem || msgs[0].Content != "sys" {
		t.Errorf("bad system message: %+v", msgs[0])
	}
	if msgs[1].Role != chat.ChatRoleUser {
		t.Errorf("bad user role: %s", msgs[1].Role)
	}

	if _, err := New("").WithSection("A", "body").Build(); err == nil {
		t.Error("expected error without system prompt")
	}
	if _, err := New("sys").Build(); err == nil {
		t.Error("expected error with empty user prompt")
	}
}

func TestBuilderMaxChars(t *testing.T) {
	b := New("sys").
		WithSection("First", strings.Repeat("a", 20)).
		WithSection("Second", strings.Repeat("b", 200)).
		WithFooter("end").
		WithMaxChars(60)

	user := b.User()
	if strings.Contains(user, "Second") {
		t.Errorf("second section should be cut: %q", user)
	}
	if !strings.Contains(user, "First") || !strings.HasSuffix(user, "end") {
		t.Errorf("first section and footer should survive: %q", user)
	}
}
