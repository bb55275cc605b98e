package membrane

import "testing"

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want State
	}{
		{"canonical", "danificada", Damaged},
		{"upper case", "ROMPIDA", Ruptured},
		{"diacritics", "Estável", Stable},
		{"surrounding spaces", "  intacta ", Intact},
		{"mixed case with accent", "ArRuÍnada", Ruined},
		{"unknown", "???", DefaultState},
		{"empty", "", DefaultState},
		{"english name is not canonical", "ruptured", DefaultState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeState(tt.raw); got != tt.want {
				t.Errorf("NormalizeState(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDefaultStateIsMedian(t *testing.T) {
	states := States()
	if len(states) != 5 {
		t.Fatalf("expected 5 states, got %d", len(states))
	}
	if states[len(states)/2] != DefaultState {
		t.Errorf("median state = %q, want %q", states[len(states)/2], DefaultState)
	}
}

func TestStylesMonotonic(t *testing.T) {
	states := States()
	for i := 1; i < len(states); i++ {
		prev, cur := StyleFor(states[i-1]), StyleFor(states[i])
		if cur.FillOpacity <= prev.FillOpacity {
			t.Errorf("fill opacity not increasing at %s: %v <= %v", states[i], cur.FillOpacity, prev.FillOpacity)
		}
		if cur.LineWidth <= prev.LineWidth {
			t.Errorf("line width not increasing at %s: %v <= %v", states[i], cur.LineWidth, prev.LineWidth)
		}
	}
}

func TestStyleFor(t *testing.T) {
	style := StyleFor(Damaged)
	if style.FillOpacity != 0.40 || style.LineWidth != 2.5 {
		t.Errorf("unexpected damaged style: %+v", style)
	}
	if style.Pattern != "membrane-texture-danificada" {
		t.Errorf("unexpected pattern %q", style.Pattern)
	}

	if StyleFor(Intact).LineDasharray != nil {
		t.Error("intact membranes should draw a solid line")
	}

	fallback := StyleFor(State("bogus"))
	if fallback.Label != StyleFor(DefaultState).Label {
		t.Errorf("unknown key fell back to %q", fallback.Label)
	}

	// Callers must not be able to mutate the table through the returned slice
	dash := StyleFor(Stable).LineDasharray
	dash[0] = 99
	if StyleFor(Stable).LineDasharray[0] != 6 {
		t.Error("StyleFor leaked the shared dash slice")
	}
}

func TestStateLevelAndLabel(t *testing.T) {
	if Intact.Level() != 1 || Ruptured.Level() != 5 {
		t.Errorf("unexpected levels: intact=%d ruptured=%d", Intact.Level(), Ruptured.Level())
	}
	if State("x").Level() != 0 {
		t.Error("unknown state should have level 0")
	}
	if Ruined.Label() != "Arruinada" {
		t.Errorf("Label() = %q", Ruined.Label())
	}
	if len(Patterns()) != 5 {
		t.Errorf("expected 5 patterns, got %d", len(Patterns()))
	}
}
