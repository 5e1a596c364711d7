// Package screen holds the display state shared by the terminal and window
// front ends: the running conversation, the clock face and the eye.
package screen

import (
	"strings"
	"time"

	"talkbox/pipeline"
)

type Role int

const (
	User Role = iota
	Assistant
)

type Entry struct {
	Role Role
	Text string
}

// Conversation is the chat screen's content. It is not safe for concurrent
// use; the front ends serialize access.
type Conversation struct {
	max      int
	entries  []Entry
	partial  string
	replying bool
	err      string
}

// NewConversation keeps at most max entries, dropping the oldest.
func NewConversation(max int) *Conversation {
	if max <= 0 {
		max = 1
	}
	return &Conversation{max: max}
}

// Transcript updates the utterance in progress. Partials are padded with
// Overwrite spaces so a shorter revision blanks the cells a longer one used.
func (c *Conversation) Transcript(ev pipeline.TranscriptEvent) {
	c.err = ""
	if !ev.IsFinal {
		c.partial = ev.Text + strings.Repeat(" ", ev.Overwrite)
		return
	}
	c.partial = ""
	if strings.TrimSpace(ev.Text) != "" {
		c.add(Entry{Role: User, Text: strings.TrimSpace(ev.Text)})
	}
}

// Reply appends a streamed chunk to the assistant's current answer.
func (c *Conversation) Reply(text string, done bool) {
	if !c.replying {
		if text == "" {
			return
		}
		c.add(Entry{Role: Assistant})
		c.replying = true
	}
	c.entries[len(c.entries)-1].Text += text
	if done {
		c.replying = false
	}
}

func (c *Conversation) Error(err error) {
	c.replying = false
	if err != nil {
		c.err = err.Error()
	}
}

func (c *Conversation) add(e Entry) {
	c.entries = append(c.entries, e)
	if over := len(c.entries) - c.max; over > 0 {
		c.entries = append(c.entries[:0:0], c.entries[over:]...)
	}
}

func (c *Conversation) Entries() []Entry { return append([]Entry(nil), c.entries...) }
func (c *Conversation) Partial() string  { return c.partial }
func (c *Conversation) Err() string      { return c.err }

// Clock formats t for the home screen, e.g. "09:05 PM".
func Clock(t time.Time) string {
	return t.Format("03:04 PM")
}

// Wrap breaks text on spaces into lines of at most width bytes. Words
// longer than width are split.
func Wrap(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
