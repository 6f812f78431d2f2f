package ics

import (
	"errors"
	"strings"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

// ContentType is the media type a published feed must be served with. The
// method parameter is required because the document carries METHOD.
const ContentType = "text/calendar; charset=utf-8; method=publish"

// Generator turns meeting records into a VCALENDAR document. It holds only
// immutable options and is safe for concurrent use.
type Generator struct {
	opts Options
}

func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts}
}

// Generate renders records in the order given. ok is false when there is
// nothing to publish: no records, or every record was malformed. Malformed
// records are logged and skipped.
func (g *Generator) Generate(records []model.Meeting) (string, bool) {
	if len(records) == 0 {
		return "", false
	}

	var body strings.Builder
	written := 0
	for _, m := range records {
		block, err := FormatEvent(m, g.opts)
		if err != nil {
			if errors.Is(err, model.ErrMalformedRecord) {
				appLog.Warn("ics: skipping malformed meeting", "id", m.ID, "team", m.Team, "err", err.Error())
				continue
			}
			appLog.Error("ics: format failed", err, "id", m.ID)
			continue
		}
		body.WriteString(block)
		written++
	}
	if written == 0 {
		return "", false
	}

	var b strings.Builder
	b.Grow(body.Len() + 160)
	w := lineWriter{b: &b, fold: g.opts.FoldLines}
	w.line("BEGIN:VCALENDAR")
	w.line("VERSION:2.0")
	w.line("PRODID:" + g.opts.ProductID)
	w.line("METHOD:PUBLISH")
	w.line("CALSCALE:GREGORIAN")
	b.WriteString(body.String())
	w.line("END:VCALENDAR")

	return b.String(), true
}
