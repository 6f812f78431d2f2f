package ics

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"meetcal/internal/model"
	"meetcal/internal/recurrence"
)

const crlf = "\r\n"

// Options carries the fixed boilerplate written into every feed.
type Options struct {
	ProductID string
	Category  string
	// Organizer is a format string receiving the team name, e.g.
	// "WordPress %s Team".
	Organizer   string
	Mailbox     string
	Location    string
	Description string

	// FoldLines wraps content lines longer than 75 octets as RFC 5545
	// section 3.1 describes. Off by default: the published feed has always
	// been unfolded and some consumers compare it line by line.
	FoldLines bool
}

func DefaultOptions() Options {
	return Options{
		ProductID:   "-//Make WordPress//Meeting Events Calendar//EN",
		Category:    "WordPress",
		Organizer:   "WordPress %s Team",
		Mailbox:     "mail@example.com",
		Location:    "#meta channel on Slack",
		Description: "Slack channel link: https://wordpress.slack.com/messages/#meta\nFor more information visit wordpress.org",
	}
}

// FormatEvent renders one meeting as a VEVENT block terminated by CRLF.
// A meeting whose start or cancelled dates cannot be parsed yields an error
// wrapping model.ErrMalformedRecord.
func FormatEvent(m model.Meeting, opts Options) (string, error) {
	start, err := m.Start()
	if err != nil {
		return "", err
	}
	exdates, err := recurrence.FormatExDates(m.Cancelled, m.Time)
	if err != nil {
		return "", fmt.Errorf("%w: id %s: %w", model.ErrMalformedRecord, m.ID, err)
	}

	dtstart := recurrence.Stamp(start)
	dtend := recurrence.Stamp(start.Add(model.Duration))

	var b strings.Builder
	w := lineWriter{b: &b, fold: opts.FoldLines}

	w.line("BEGIN:VEVENT")
	w.line("UID:" + escapeText(m.ID))
	w.line("DTSTAMP:" + dtstart)
	w.line("DTSTART:" + dtstart)
	w.line("DTEND:" + dtend)
	w.line("CATEGORIES:" + escapeText(opts.Category))
	w.line("ORGANIZER;CN=" + paramValue(fmt.Sprintf(opts.Organizer, m.Team)) + ":mailto:" + opts.Mailbox)
	w.line("SUMMARY:" + escapeText(m.Team+": "+m.Title))
	w.line("SEQUENCE:0")
	w.line("STATUS:CONFIRMED")
	w.line("TRANSP:OPAQUE")
	w.line("LOCATION:" + escapeText(opts.Location))
	w.line("DESCRIPTION:" + escapeText(opts.Description))
	if rr := m.Recurrence.RRule(); rr != "" {
		w.line("RRULE:" + rr)
	}
	if len(exdates) > 0 {
		w.line("EXDATE:" + strings.Join(exdates, ","))
	}
	w.line("END:VEVENT")

	return b.String(), nil
}

type lineWriter struct {
	b    *strings.Builder
	fold bool
}

func (w lineWriter) line(s string) {
	if w.fold {
		s = fold(s)
	}
	w.b.WriteString(s)
	w.b.WriteString(crlf)
}

// escapeText applies RFC 5545 TEXT escaping.
func escapeText(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, ";", "\\;")
	text = strings.ReplaceAll(text, ",", "\\,")
	text = strings.ReplaceAll(text, "\r\n", "\\n")
	text = strings.ReplaceAll(text, "\n", "\\n")
	return text
}

// paramValue quotes a parameter value when it contains a delimiter.
// DQUOTE and control characters may not appear in a parameter value; DQUOTE
// is dropped and each control character (CR, LF, ...) becomes a space.
func paramValue(v string) string {
	v = strings.Map(func(r rune) rune {
		switch {
		case r == '"':
			return -1
		case r < 0x20 || r == 0x7f:
			return ' '
		}
		return r
	}, v)
	if strings.ContainsAny(v, ":;,") {
		return `"` + v + `"`
	}
	return v
}

const maxLineOctets = 75

// fold splits a content line into 75-octet chunks, continuation lines
// starting with a single space. Multi-byte runes are never split.
func fold(s string) string {
	if len(s) <= maxLineOctets {
		return s
	}
	var b strings.Builder
	width := 0
	limit := maxLineOctets
	for i := 0; i < len(s); {
		_, n := utf8.DecodeRuneInString(s[i:])
		if width+n > limit {
			b.WriteString(crlf + " ")
			width = 0
			limit = maxLineOctets - 1
		}
		b.WriteString(s[i : i+n])
		width += n
		i += n
	}
	return b.String()
}
