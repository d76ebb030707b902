package nlp

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/jdkato/prose/v2"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/domain/services"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

// EntityExtractor resolves a message into a structured bag of slot values.
//
// Design Principles:
// - Cascading fallback: remote provider first, local extraction second
// - A remote bag is returned as-is after date/time normalization, never
//   merged with local results
// - Local stages merge into one bag with fixed precedence, each stage
//   overwriting only its own keys
// - Total: Extract never fails, worst case is an empty bag
type EntityExtractor struct {
	strategies []services.EntityStrategy
	logger     *logging.StructuredLogger
}

// NewEntityExtractor creates an extractor. provider may be nil, in which
// case only local extraction runs. now is the reference clock for
// relative date expressions; nil means time.Now.
func NewEntityExtractor(provider services.LanguageProvider, parser *DateTimeParser, now func() time.Time, logger *logging.StructuredLogger) *EntityExtractor {
	if parser == nil {
		parser = NewDateTimeParser()
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	strategies := make([]services.EntityStrategy, 0, 2)
	if provider != nil {
		strategies = append(strategies, &remoteEntityStrategy{provider: provider, parser: parser, now: now})
	}
	strategies = append(strategies, &localEntityStrategy{parser: parser, now: now, logger: logger})

	return &EntityExtractor{strategies: strategies, logger: logger}
}

// Extract resolves the message into an EntityBag, optionally scoped by a
// previously detected intent. It never returns nil and never fails.
func (e *EntityExtractor) Extract(ctx context.Context, message string, intent models.Intent) *models.EntityBag {
	for _, strategy := range e.strategies {
		bag, err := strategy.TryExtract(ctx, message, intent)
		if err != nil {
			e.logger.Warn("entity strategy failed", map[string]interface{}{
				"strategy": strategy.Name(),
				"error":    err.Error(),
			})
			continue
		}
		if bag != nil {
			return bag
		}
	}
	return &models.EntityBag{}
}

// remoteEntityStrategy asks the language provider first. A returned bag
// wins outright; date/time fields that arrived as free text are
// normalized here, keeping the original text when normalization fails.
type remoteEntityStrategy struct {
	provider services.LanguageProvider
	parser   *DateTimeParser
	now      func() time.Time
}

func (s *remoteEntityStrategy) Name() string { return "remote:" + s.provider.Name() }

func (s *remoteEntityStrategy) TryExtract(ctx context.Context, message string, intent models.Intent) (*models.EntityBag, error) {
	bag, err := s.provider.ExtractEntities(ctx, message, intent)
	if err != nil || bag == nil {
		return nil, err
	}

	now := s.now()

	if bag.Date == nil && bag.DateText != "" {
		if date := s.parser.ParseDate(bag.DateText, now); date != nil {
			bag.Date = date
			bag.DateText = ""
		}
	}
	if bag.Time == nil && bag.TimeText != "" {
		if clock := s.parser.ParseTime(bag.TimeText, now); clock != nil {
			bag.Time = clock
			bag.TimeText = ""
		}
	}

	return bag, nil
}

// localEntityStrategy runs named-entity recognition, date/time/duration
// extraction, address matching and intent-specific refinement. It always
// produces a bag, so it terminates the cascade.
type localEntityStrategy struct {
	parser *DateTimeParser
	now    func() time.Time
	logger *logging.StructuredLogger
}

func (s *localEntityStrategy) Name() string { return "local" }

func (s *localEntityStrategy) TryExtract(_ context.Context, message string, intent models.Intent) (*models.EntityBag, error) {
	bag := &models.EntityBag{}

	s.recognizeNames(message, bag)

	now := s.now()
	bag.Duration = s.parser.ExtractDuration(message)
	bag.Date, bag.Time = s.parser.Extract(message, now)

	bag.Email = FindAddresses(message)

	switch intent {
	case models.IntentSendEmail:
		extractEmailFields(message, bag)
	case models.IntentScheduleMeeting:
		extractMeetingFields(message, bag)
	case models.IntentFindContact:
		if len(bag.Person) == 0 {
			if name := fallbackPersonName(message); name != "" {
				bag.Person = append(bag.Person, name)
			}
		}
	}

	return bag, nil
}

// recognizeNames tags people and places. Persons accumulate in order of
// appearance; the first tagged place wins. The bundled model emits only
// PERSON and GPE labels.
func (s *localEntityStrategy) recognizeNames(message string, bag *models.EntityBag) {
	doc, err := prose.NewDocument(message)
	if err != nil {
		s.logger.Warn("named-entity recognition failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, ent := range doc.Entities() {
		switch ent.Label {
		case "PERSON":
			bag.Person = append(bag.Person, ent.Text)
		case "GPE":
			if bag.Location == "" {
				bag.Location = ent.Text
			}
		}
	}
}

var subjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsubject\s*(?:is|:)\s*["']?([^"'\n]+?)["']?\s*(?:\s(?:body|content|message)\s*(?:is|:).*)?$`),
	regexp.MustCompile(`(?i)\babout\s+["']?([^"'\n]+?)["']?\s*(?:\s(?:body|content|message)\s*(?:is|:).*)?$`),
	regexp.MustCompile(`(?i)\bregarding\s+["']?([^"'\n]+?)["']?\s*(?:\s(?:body|content|message)\s*(?:is|:).*)?$`),
}

var bodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbody\s*(?:is|:)\s*["']?([^"'\n]+)["']?\s*$`),
	regexp.MustCompile(`(?i)\bcontent\s*(?:is|:)\s*["']?([^"'\n]+)["']?\s*$`),
	regexp.MustCompile(`(?i)\bmessage\s*(?:is|:)\s*["']?([^"'\n]+)["']?\s*$`),
}

// extractEmailFields pulls subject and body via ordered pattern
// alternatives; the first match per field wins.
func extractEmailFields(message string, bag *models.EntityBag) {
	if subject := firstSubmatch(subjectPatterns, message); subject != "" {
		bag.Subject = subject
	}
	if body := firstSubmatch(bodyPatterns, message); body != "" {
		bag.Body = body
	}
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:at|in)\s+(?:the\s+)?["']?([a-z][a-z0-9 ]*?)["']?(?:\s+(?:on|from|until|with|tomorrow|today|next|this)\b|[,.!?]|$)`),
	regexp.MustCompile(`(?i)\blocation\s*(?:is|:)\s*["']?([a-z][a-z0-9 ]*?)["']?(?:[,.!?]|$)`),
	regexp.MustCompile(`(?i)\bplace\s*(?:is|:)\s*["']?([a-z][a-z0-9 ]*?)["']?(?:[,.!?]|$)`),
}

var meetingSubjectPatterns = append([]*regexp.Regexp{
	regexp.MustCompile(`(?i)\btitle\s*(?:is|:)\s*["']?([^"'\n]+?)["']?\s*$`),
}, subjectPatterns...)

// timeOfDayWords are rejected as meeting locations: "at night" is a time
// reference, not a place.
var timeOfDayWords = map[string]bool{
	"today":     true,
	"tomorrow":  true,
	"morning":   true,
	"afternoon": true,
	"evening":   true,
	"night":     true,
}

// extractMeetingFields pulls a location and a subject for the meeting
// flow, rejecting location candidates that are really time references.
func extractMeetingFields(message string, bag *models.EntityBag) {
	for _, pattern := range locationPatterns {
		match := pattern.FindStringSubmatch(message)
		if match == nil {
			continue
		}
		candidate := strings.TrimSpace(match[1])
		if candidate == "" || timeOfDayWords[strings.ToLower(candidate)] {
			continue
		}
		bag.Location = candidate
		break
	}

	if subject := firstSubmatch(meetingSubjectPatterns, message); subject != "" {
		bag.Subject = subject
	}
}

// personTriggers precede a name in messages like "find contact for John
// Smith".
var personTriggers = map[string]bool{
	"for":         true,
	"about":       true,
	"contact":     true,
	"information": true,
}

// fallbackPersonName scans for a trigger word followed by a run of
// capitalized tokens and returns the run as a name.
func fallbackPersonName(message string) string {
	words := strings.Fields(message)
	for i, word := range words {
		if !personTriggers[strings.ToLower(word)] || i+1 >= len(words) {
			continue
		}
		if !startsUpper(words[i+1]) {
			continue
		}
		parts := []string{}
		for j := i + 1; j < len(words); j++ {
			if !startsUpper(words[j]) {
				break
			}
			parts = append(parts, strings.Trim(words[j], ".,!?"))
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return ""
}

func startsUpper(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

func firstSubmatch(patterns []*regexp.Regexp, message string) string {
	for _, pattern := range patterns {
		if match := pattern.FindStringSubmatch(message); match != nil {
			if value := strings.TrimSpace(match[1]); value != "" {
				return value
			}
		}
	}
	return ""
}
