//go:build gui

package gui

import (
	"strings"

	"talkbox/screen"
)

func chatText(c *screen.Conversation) string {
	var b strings.Builder
	for _, e := range c.Entries() {
		if e.Role == screen.User {
			b.WriteString("you: ")
		} else {
			b.WriteString("bot: ")
		}
		b.WriteString(e.Text)
		b.WriteString("\n\n")
	}
	if p := c.Partial(); p != "" {
		b.WriteString(p)
		b.WriteString("\n")
	}
	if e := c.Err(); e != "" {
		b.WriteString("⚠ " + e + "\n")
	}
	if b.Len() == 0 {
		return "Hold the button and speak"
	}
	return strings.TrimRight(b.String(), "\n")
}
