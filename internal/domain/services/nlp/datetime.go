package nlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/mshogin/assistant/internal/domain/models"
)

var (
	// durationPattern matches "<N> hour(s)", "<N> minute(s)" and "<N> min(s)".
	durationPattern = regexp.MustCompile(`(?i)(\d+)\s*(hour|minute|min)s?`)

	// clockTimePattern matches explicit clock-time substrings: "15:30",
	// "3pm", "3 PM". A bare number without a colon or meridiem marker is
	// not treated as an explicit time.
	clockTimePattern = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\b|\b\d{1,2}\s*(?:am|pm)\b`)
)

// DateTimeParser extracts dates, clock times and durations from free text.
//
// Natural-language expressions ("tomorrow", "next friday at 3pm") are
// resolved relative to a caller-supplied reference instant. When an
// explicit clock-time substring is present in the raw text, the date is
// taken from the full parse but the time comes from re-parsing the first
// explicit substring alone: an explicit local time always wins over the
// parser's own time guess.
type DateTimeParser struct {
	w *when.Parser
}

// NewDateTimeParser builds a parser with the English and common rule sets.
func NewDateTimeParser() *DateTimeParser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &DateTimeParser{w: w}
}

// Extract pulls a date and a clock time from the message, relative to now.
// Either return value may be nil when nothing was found.
func (p *DateTimeParser) Extract(message string, now time.Time) (*time.Time, *models.ClockTime) {
	result, err := p.w.Parse(message, now)
	if err != nil || result == nil {
		return nil, nil
	}

	date := truncateToDay(result.Time)

	if explicit := clockTimePattern.FindString(message); explicit != "" {
		return &date, p.ParseTime(explicit, now)
	}

	clock := models.ClockTimeOf(result.Time)
	return &date, &clock
}

// ParseDate resolves text to a calendar date: a strict ISO form first,
// then a lenient natural-language parse. Returns nil when both fail.
func (p *DateTimeParser) ParseDate(text string, now time.Time) *time.Time {
	trimmed := strings.TrimSpace(text)

	if parsed, err := time.ParseInLocation("2006-01-02", trimmed, now.Location()); err == nil {
		date := truncateToDay(parsed)
		return &date
	}

	result, err := p.w.Parse(trimmed, now)
	if err != nil || result == nil {
		return nil
	}
	date := truncateToDay(result.Time)
	return &date
}

// ParseTime resolves text to a time of day: strict HH:MM first, then a
// lenient natural-language parse. Returns nil when both fail.
func (p *DateTimeParser) ParseTime(text string, now time.Time) *models.ClockTime {
	trimmed := strings.TrimSpace(text)

	if parsed, err := time.Parse("15:04", trimmed); err == nil {
		clock := models.ClockTimeOf(parsed)
		return &clock
	}

	result, err := p.w.Parse(trimmed, now)
	if err != nil || result == nil {
		return nil
	}
	clock := models.ClockTimeOf(result.Time)
	return &clock
}

// ExtractDuration returns a duration in minutes, or 0 when none was found.
// Hours are converted to minutes.
func (p *DateTimeParser) ExtractDuration(message string) int {
	match := durationPattern.FindStringSubmatch(message)
	if match == nil {
		return 0
	}

	amount, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}

	if strings.HasPrefix(strings.ToLower(match[2]), "hour") {
		return amount * 60
	}
	return amount
}

// HasExplicitTime reports whether the text contains an explicit clock-time
// substring.
func (p *DateTimeParser) HasExplicitTime(text string) bool {
	return clockTimePattern.MatchString(text)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
