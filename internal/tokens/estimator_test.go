package tokens

import (
	"testing"

	"github.com/fixxit/fixxit/internal/types"
)

func TestFallbackCount(t *testing.T) {
	// A zero estimator uses the chars/4 approximation.
	var e *Estimator
	if got := e.Count("abcdefgh"); got != 2 {
		t.Errorf("nil estimator Count = %d, want 2", got)
	}

	empty := &Estimator{}
	if got := empty.Count("abcdefgh"); got != 2 {
		t.Errorf("fallback Count = %d, want 2", got)
	}
	if got := empty.Count(""); got != 0 {
		t.Errorf("empty string Count = %d", got)
	}
}

func TestCountMessagesAddsOverhead(t *testing.T) {
	e := &Estimator{}
	messages := []types.Message{
		{Role: types.RoleUser, Content: "abcd"},
		{Role: types.RoleAssistant, Content: "efgh"},
	}

	// Two messages at 1 token each plus per-message overhead.
	want := 2 * (1 + MessageOverhead)
	if got := e.CountMessages(messages); got != want {
		t.Errorf("CountMessages = %d, want %d", got, want)
	}
}
