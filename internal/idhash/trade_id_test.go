package idhash

import (
	"strings"
	"testing"
)

func TestNewTradeID(t *testing.T) {
	id := NewTradeID()

	if !strings.HasPrefix(id, "0x") {
		t.Errorf("NewTradeID() = %q, want 0x prefix", id)
	}
	if len(id) != 66 {
		t.Errorf("NewTradeID() length = %d, want 66", len(id))
	}
	for _, c := range id[2:] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("NewTradeID() contains non-hex character %q", c)
		}
	}
}

func TestNewTradeID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTradeID()
		if seen[id] {
			t.Fatalf("duplicate trade id %s", id)
		}
		seen[id] = true
	}
}
