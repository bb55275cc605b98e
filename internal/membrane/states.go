// Package membrane holds the severity states of a membrane zone and the rendering
// style each state maps to.
package membrane

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// State is the canonical key of a membrane severity level
type State string

const (
	Intact   State = "intacta"
	Stable   State = "estavel"
	Damaged  State = "danificada"
	Ruined   State = "arruinada"
	Ruptured State = "rompida"
)

// DefaultState is the median level, used for absent or unrecognized input
const DefaultState = Stable

// BaseColor is the fill and line color of state-driven zones
const BaseColor = "#ffffff"

// Style describes how a membrane state is drawn
type Style struct {
	Label         string    `json:"label"`
	FillOpacity   float64   `json:"fillOpacity"`
	LineWidth     float64   `json:"lineWidth"`
	LineDasharray []float64 `json:"lineDasharray"` // nil means a solid line
	Pattern       string    `json:"pattern"`
}

// ordered lists states by increasing intensity
var ordered = []State{Intact, Stable, Damaged, Ruined, Ruptured}

var styles = map[State]Style{
	Intact: {
		Label:       "Intacta",
		FillOpacity: 0.15,
		LineWidth:   1.5,
		Pattern:     "membrane-texture-intacta",
	},
	Stable: {
		Label:         "Estavel",
		FillOpacity:   0.25,
		LineWidth:     2,
		LineDasharray: []float64{6, 2},
		Pattern:       "membrane-texture-estavel",
	},
	Damaged: {
		Label:         "Danificada",
		FillOpacity:   0.40,
		LineWidth:     2.5,
		LineDasharray: []float64{4, 3},
		Pattern:       "membrane-texture-danificada",
	},
	Ruined: {
		Label:         "Arruinada",
		FillOpacity:   0.60,
		LineWidth:     3,
		LineDasharray: []float64{2, 2},
		Pattern:       "membrane-texture-arruinada",
	},
	Ruptured: {
		Label:         "Rompida",
		FillOpacity:   0.85,
		LineWidth:     3.5,
		LineDasharray: []float64{1, 2},
		Pattern:       "membrane-texture-rompida",
	},
}

// States returns every state ordered from intact to ruptured
func States() []State {
	out := make([]State, len(ordered))
	copy(out, ordered)
	return out
}

// Valid reports whether s is one of the canonical keys
func (s State) Valid() bool {
	_, ok := styles[s]
	return ok
}

// Level returns the 1-based intensity of the state, or 0 for unknown keys
func (s State) Level() int {
	for i, state := range ordered {
		if state == s {
			return i + 1
		}
	}
	return 0
}

// Label returns the display label of the state
func (s State) Label() string {
	return StyleFor(s).Label
}

// NormalizeState maps free-form input onto a canonical key. Matching ignores case,
// surrounding whitespace and diacritics ("Estável" matches "estavel"). Anything
// unrecognized resolves to DefaultState; malformed data never blocks rendering.
func NormalizeState(raw string) State {
	if raw == "" {
		return DefaultState
	}
	folded := foldDiacritics(strings.ToLower(raw))
	candidate := State(strings.TrimSpace(folded))
	if candidate.Valid() {
		return candidate
	}
	return DefaultState
}

// StyleFor returns the style of a state, falling back to DefaultState's style for
// unknown keys. The returned dash slice is a fresh copy.
func StyleFor(s State) Style {
	style, ok := styles[s]
	if !ok {
		style = styles[DefaultState]
	}
	if style.LineDasharray != nil {
		dash := make([]float64, len(style.LineDasharray))
		copy(dash, style.LineDasharray)
		style.LineDasharray = dash
	}
	return style
}

// Patterns returns the texture pattern id of every state, in state order
func Patterns() []string {
	out := make([]string, 0, len(ordered))
	for _, state := range ordered {
		out = append(out, styles[state].Pattern)
	}
	return out
}

func foldDiacritics(s string) string {
	// transformers are stateful, so build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
