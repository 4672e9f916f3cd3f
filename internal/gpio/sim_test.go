package gpio

import (
	"errors"
	"testing"
)

func TestSimRecordsLevels(t *testing.T) {
	s := NewSim()

	if got := s.Level(); got != Low {
		t.Errorf("initial level = %v, want low", got)
	}

	for _, l := range []Level{High, High, Low, High} {
		if err := s.SetLevel(l); err != nil {
			t.Fatalf("SetLevel(%v) failed: %v", l, err)
		}
	}

	if got := s.Level(); got != High {
		t.Errorf("level = %v, want high", got)
	}

	want := []Level{High, High, Low, High}
	got := s.History()
	if len(got) != len(want) {
		t.Fatalf("history length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSimCloseIsIdempotent(t *testing.T) {
	s := NewSim()

	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if !s.Closed() {
		t.Error("Closed() = false after Close")
	}
	if got := s.CloseCount(); got != 2 {
		t.Errorf("CloseCount() = %d, want 2", got)
	}

	if err := s.SetLevel(High); !errors.Is(err, ErrClosed) {
		t.Errorf("SetLevel after Close = %v, want ErrClosed", err)
	}
}

func TestLevelFormatting(t *testing.T) {
	if High.String() != "high" || Low.String() != "low" {
		t.Errorf("String() = %q/%q, want high/low", High, Low)
	}
	if High.Int() != 1 || Low.Int() != 0 {
		t.Errorf("Int() = %d/%d, want 1/0", High.Int(), Low.Int())
	}
}
