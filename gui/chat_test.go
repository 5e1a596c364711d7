//go:build gui

package gui

import (
	"errors"
	"testing"

	"talkbox/pipeline"
	"talkbox/screen"
)

func TestChatText(t *testing.T) {
	c := screen.NewConversation(10)
	if got := chatText(c); got != "Hold the button and speak" {
		t.Fatalf("empty = %q", got)
	}
	c.Transcript(pipeline.TranscriptEvent{Text: "hi", IsFinal: true})
	c.Reply("hello", true)
	c.Transcript(pipeline.TranscriptEvent{Text: "and"})
	want := "you: hi\n\nbot: hello\n\nand"
	if got := chatText(c); got != want {
		t.Fatalf("chatText = %q, want %q", got, want)
	}
	c.Error(errors.New("offline"))
	if got := chatText(c); got != want+"\n⚠ offline" {
		t.Fatalf("with error = %q", got)
	}
}
