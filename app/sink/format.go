package sink

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/feedcourier/feedcourier/app/database"
)

// MaxMessageLen is Telegram's message size limit in characters.
const MaxMessageLen = 4096

const truncationMarker = "…"

// FormatMessage renders a delivery task as Telegram HTML: bold title,
// optional summary body, optional source link, optional tag suffix. The
// summary is carried through as-is; feeds ship HTML-formatted descriptions
// and Telegram rejects double-escaped ones. Output is capped at
// MaxMessageLen.
func FormatMessage(task database.DeliveryTask) string {
	var b strings.Builder

	title := task.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(title))

	if task.Summary != "" {
		b.WriteString(task.Summary)
	}
	if task.Link != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">Source</a>", html.EscapeString(task.Link))
	}
	if task.Tags != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(task.Tags))
	}

	return Truncate(b.String(), MaxMessageLen)
}

// Truncate returns s cut to at most limit runes. A truncated string is
// exactly limit runes long and ends with the truncation marker.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	keep := limit - utf8.RuneCountInString(truncationMarker)
	count := 0
	for i := range s {
		if count == keep {
			return s[:i] + truncationMarker
		}
		count++
	}
	return s
}
