package pipeline

import (
	"unicode/utf8"

	"talkbox/transcriber"
)

type TranscriptEvent struct {
	Text    string
	IsFinal bool
	// Overwrite is how many trailing cells of a longer earlier partial of
	// the same utterance are still on screen and must be blanked.
	Overwrite int
}

// overwriteTracker keeps the widest partial shown for the current
// utterance so Text plus Overwrite never shrinks until the final.
type overwriteTracker struct {
	shown int
}

func (t *overwriteTracker) next(ev transcriber.Event) TranscriptEvent {
	n := utf8.RuneCountInString(ev.Text)
	out := TranscriptEvent{Text: ev.Text, IsFinal: ev.IsFinal}
	if t.shown > n {
		out.Overwrite = t.shown - n
	}
	if ev.IsFinal {
		t.shown = 0
	} else {
		t.shown = max(t.shown, n)
	}
	return out
}
