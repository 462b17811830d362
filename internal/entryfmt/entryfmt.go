// Package entryfmt reads and writes journal entries as Markdown with YAML frontmatter.
//
//	---
//	title: Morning run
//	mood: 3
//	activities: [1, 4]
//	date: 2024-03-01T07:30
//	status: ACTIVE
//	---
//	Body text.
package entryfmt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/moodlog/internal/apperr"
	"github.com/starford/moodlog/internal/models"
)

// dateLayouts are tried in order; layouts without an offset are read in the
// caller's timezone.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Entry is a parsed journal entry.
type Entry struct {
	Title       string
	MoodID      *int64
	ActivityIDs []int64
	Date        time.Time // zero when the entry has no date
	Status      string
	Body        string
}

type frontmatter struct {
	Title      string  `yaml:"title,omitempty"`
	Mood       *int64  `yaml:"mood,omitempty"`
	Activities []int64 `yaml:"activities,flow,omitempty"`
	Date       string  `yaml:"date,omitempty"`
	Status     string  `yaml:"status,omitempty"`
}

// Parse reads an entry. Dates without an offset are interpreted in loc.
// Malformed YAML is treated as plain body text; well-formed frontmatter with
// a wrongly typed field or an unreadable date is a validation error.
func Parse(data []byte, loc *time.Location) (*Entry, error) {
	if loc == nil {
		loc = time.UTC
	}
	block, body, ok := splitFrontmatter(data)

	var fm frontmatter
	if ok {
		if err := yaml.Unmarshal(block, &fm); err != nil {
			var te *yaml.TypeError
			if errors.As(err, &te) {
				return nil, &apperr.ValidationError{Field: "frontmatter", Err: err}
			}
			fm, body = frontmatter{}, string(data)
		}
	}

	e := &Entry{
		Title:       fm.Title,
		MoodID:      fm.Mood,
		ActivityIDs: fm.Activities,
		Status:      strings.ToUpper(strings.TrimSpace(fm.Status)),
		Body:        body,
	}
	if e.Title == "" {
		e.Title = firstHeading(body)
	}
	if fm.Date != "" {
		d, err := parseDate(fm.Date, loc)
		if err != nil {
			return nil, &apperr.ValidationError{Field: "date", Err: err}
		}
		e.Date = d
	}
	return e, nil
}

// Format renders r as an entry, with its date shown in loc.
func Format(r models.Record, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	fm := frontmatter{
		Title:      r.Title,
		Mood:       r.MoodID,
		Activities: r.ActivityIDs,
		Status:     r.Status,
	}
	if !r.Date.IsZero() {
		fm.Date = r.Date.In(loc).Format(time.RFC3339)
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("entryfmt: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n")
	buf.WriteString(r.Content)
	return buf.Bytes(), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. ok is false when there is no complete frontmatter block.
func splitFrontmatter(data []byte) (block []byte, body string, ok bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), false
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), false
	}
	after := rest[idx+1+len(delim):]
	return rest[:idx], strings.TrimLeft(string(after), "\n\r"), true
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// firstHeading returns the text of the first H1 heading in body.
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
