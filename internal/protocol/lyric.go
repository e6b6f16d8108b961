package protocol

import "slices"

// Lyric types.
const (
	LyricOriginal   = "o"
	LyricTranslated = "t"
)

// LyricLine pairs an original line with its translation.
type LyricLine struct {
	O string `json:"o"`
	T string `json:"t"`
}

// Lyric is the timed lyric of the current track. Type selects which text of
// each line is shown.
type Lyric struct {
	Type string      `json:"type,omitempty"`
	Time []float64   `json:"time,omitempty"`
	Text []LyricLine `json:"text,omitempty"`
}

// DefaultLyric is shown when nothing is playing.
func DefaultLyric() Lyric {
	return Lyric{
		Type: LyricOriginal,
		Time: []float64{0},
		Text: []LyricLine{{O: "~", T: "~"}},
	}
}

// Merge returns l with every non-empty field of patch applied.
func (l Lyric) Merge(patch Lyric) Lyric {
	if patch.Type != "" {
		l.Type = patch.Type
	}
	if patch.Time != nil {
		l.Time = patch.Time
	}
	if patch.Text != nil {
		l.Text = patch.Text
	}
	return l
}

// Line returns the text shown for line idx, or "" when out of range.
func (l Lyric) Line(idx int) string {
	if idx < 0 || idx >= len(l.Text) {
		return ""
	}
	if l.Type == LyricTranslated {
		return l.Text[idx].T
	}
	return l.Text[idx].O
}

// Equal reports whether l and o show the same lyric.
func (l Lyric) Equal(o Lyric) bool {
	return l.Type == o.Type && slices.Equal(l.Time, o.Time) && slices.Equal(l.Text, o.Text)
}
