package screen

import (
	"errors"
	"strings"
	"testing"
	"time"

	"talkbox/pipeline"
)

func TestConversationPartialsAndFinal(t *testing.T) {
	c := NewConversation(10)
	c.Transcript(pipeline.TranscriptEvent{Text: "hello wor"})
	if c.Partial() != "hello wor" {
		t.Fatalf("partial = %q", c.Partial())
	}
	c.Transcript(pipeline.TranscriptEvent{Text: "hello", Overwrite: 4})
	if c.Partial() != "hello    " {
		t.Fatalf("partial = %q", c.Partial())
	}
	c.Transcript(pipeline.TranscriptEvent{Text: " hello world ", IsFinal: true})
	if c.Partial() != "" {
		t.Fatalf("partial not cleared: %q", c.Partial())
	}
	got := c.Entries()
	if len(got) != 1 || got[0].Role != User || got[0].Text != "hello world" {
		t.Fatalf("entries = %+v", got)
	}
}

func TestConversationEmptyFinalIgnored(t *testing.T) {
	c := NewConversation(10)
	c.Transcript(pipeline.TranscriptEvent{Text: "  ", IsFinal: true})
	if len(c.Entries()) != 0 {
		t.Fatal("blank final added an entry")
	}
}

func TestConversationStreamedReply(t *testing.T) {
	c := NewConversation(10)
	c.Transcript(pipeline.TranscriptEvent{Text: "hi", IsFinal: true})
	c.Reply("Hel", false)
	c.Reply("lo!", false)
	c.Reply("", true)
	c.Reply("Again", false)
	c.Reply("", true)

	got := c.Entries()
	if len(got) != 3 {
		t.Fatalf("entries = %+v", got)
	}
	if got[1].Role != Assistant || got[1].Text != "Hello!" {
		t.Fatalf("first reply = %+v", got[1])
	}
	if got[2].Text != "Again" {
		t.Fatalf("second reply = %+v", got[2])
	}
}

func TestConversationDoneWithoutText(t *testing.T) {
	c := NewConversation(10)
	c.Reply("", true)
	if len(c.Entries()) != 0 {
		t.Fatal("empty reply added an entry")
	}
}

func TestConversationBounded(t *testing.T) {
	c := NewConversation(3)
	for _, w := range []string{"a", "b", "c", "d", "e"} {
		c.Transcript(pipeline.TranscriptEvent{Text: w, IsFinal: true})
	}
	got := c.Entries()
	if len(got) != 3 || got[0].Text != "c" || got[2].Text != "e" {
		t.Fatalf("entries = %+v", got)
	}
}

func TestConversationError(t *testing.T) {
	c := NewConversation(10)
	c.Reply("partial answer", false)
	c.Error(errors.New("stream closed"))
	if c.Err() != "stream closed" {
		t.Fatalf("err = %q", c.Err())
	}
	c.Reply("new", false)
	if n := len(c.Entries()); n != 2 {
		t.Fatalf("reply after error should start a new entry, have %d", n)
	}
	c.Transcript(pipeline.TranscriptEvent{Text: "x"})
	if c.Err() != "" {
		t.Fatal("new speech should clear the error")
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		h, m int
		want string
	}{
		{9, 5, "09:05 AM"},
		{21, 5, "09:05 PM"},
		{0, 0, "12:00 AM"},
		{12, 30, "12:30 PM"},
	}
	for _, tt := range tests {
		ts := time.Date(2024, 1, 1, tt.h, tt.m, 0, 0, time.UTC)
		if got := Clock(ts); got != tt.want {
			t.Errorf("Clock(%02d:%02d) = %q, want %q", tt.h, tt.m, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("the quick brown fox", 10)
	want := []string{"the quick", "brown fox"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Wrap = %q", got)
	}
	if got := Wrap("abcdefghij", 4); len(got) != 3 || got[0] != "abcd" {
		t.Fatalf("long word = %q", got)
	}
	if got := Wrap("", 5); len(got) != 1 || got[0] != "" {
		t.Fatalf("empty = %q", got)
	}
}

func TestEyePixels(t *testing.T) {
	for _, listening := range []bool{false, true} {
		p := EyePixels(7, listening)
		if len(p) != EyePixelHeight || len(p[0]) != EyeWidth {
			t.Fatalf("grid %dx%d", len(p), len(p[0]))
		}
		if c := p[EyePixelHeight/2][EyeWidth/2]; c == EyeBackground {
			t.Fatalf("centre is background (listening=%v)", listening)
		}
		if p[0][0] != EyeBackground {
			t.Fatalf("corner not background (listening=%v)", listening)
		}
		for _, row := range p {
			for _, c := range row {
				if c < 0 || c >= EyePalette {
					t.Fatalf("palette index %d out of range", c)
				}
			}
		}
	}
}
