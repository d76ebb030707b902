package nlp

import (
	"context"
	"regexp"
	"strings"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/domain/services"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

// IntentClassifier resolves a message to one of the fixed intents with a
// confidence score.
//
// Design Principles:
// - Cascading fallback: ordered strategies, first non-nil result wins
// - Remote provider result is trusted outright, no threshold applied
// - Keyword and rule stages are pure functions of the input text
// - Total: Classify never fails, worst case is {unknown, 0.3}
//
// Resolution order:
//  1. Remote language provider (optional, best-effort)
//  2. Quick keyword match for cheap unambiguous cases
//  3. Lexical zero-shot scoring with a 0.65 confidence floor
//  4. Rule-based regex groups, then a loose keyword table
type IntentClassifier struct {
	strategies []services.IntentStrategy
	logger     *logging.StructuredLogger
	observer   func(strategy string)
}

// SetStrategyObserver registers a callback invoked with the name of the
// strategy whose result was accepted. Used for metrics.
func (c *IntentClassifier) SetStrategyObserver(observer func(strategy string)) {
	c.observer = observer
}

// NewIntentClassifier creates a classifier. provider may be nil, in which
// case the remote stage is skipped entirely.
func NewIntentClassifier(provider services.LanguageProvider, logger *logging.StructuredLogger) *IntentClassifier {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	strategies := make([]services.IntentStrategy, 0, 4)
	if provider != nil {
		strategies = append(strategies, &remoteIntentStrategy{provider: provider, logger: logger})
	}
	strategies = append(strategies,
		newQuickKeywordStrategy(),
		&zeroShotStrategy{scorer: NewZeroShotScorer(), floor: zeroShotFloor},
		newRuleBasedStrategy(),
	)

	return &IntentClassifier{strategies: strategies, logger: logger}
}

// zeroShotFloor is the minimum confidence accepted from the statistical
// stage. Anything below falls through to the rule-based stage.
const zeroShotFloor = 0.65

// Classify resolves the message to an intent. It never returns an error;
// on total failure it returns {unknown, 0.0}.
func (c *IntentClassifier) Classify(ctx context.Context, message string) models.IntentResult {
	if strings.TrimSpace(message) == "" {
		return models.IntentResult{Intent: models.IntentUnknown, Confidence: 0.0}
	}

	for _, strategy := range c.strategies {
		result, err := strategy.TryClassify(ctx, message)
		if err != nil {
			c.logger.Warn("intent strategy failed", map[string]interface{}{
				"strategy": strategy.Name(),
				"error":    err.Error(),
			})
			continue
		}
		if result == nil {
			continue
		}
		result.Confidence = clampConfidence(result.Confidence)
		if c.observer != nil {
			c.observer(strategy.Name())
		}
		c.logger.Debug("intent resolved", map[string]interface{}{
			"strategy":   strategy.Name(),
			"intent":     string(result.Intent),
			"confidence": result.Confidence,
		})
		return *result
	}

	return models.IntentResult{Intent: models.IntentUnknown, Confidence: 0.0}
}

func clampConfidence(c float64) float64 {
	if c < 0.0 {
		return 0.0
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}

// remoteIntentStrategy asks the language provider first. Its answer is
// trusted unconditionally; failures and declines fall through.
type remoteIntentStrategy struct {
	provider services.LanguageProvider
	logger   *logging.StructuredLogger
}

func (s *remoteIntentStrategy) Name() string { return "remote:" + s.provider.Name() }

func (s *remoteIntentStrategy) TryClassify(ctx context.Context, message string) (*models.IntentResult, error) {
	return s.provider.ClassifyIntent(ctx, message)
}

// quickKeywordStrategy short-circuits cheap, unambiguous cases before
// paying for heavier classification. Patterns and keywords are checked
// in a fixed order so classification stays deterministic.
type quickKeywordStrategy struct {
	calendarPatterns []*regexp.Regexp
	keywords         []keywordMapping
}

type keywordMapping struct {
	keyword string
	intent  models.Intent
}

func newQuickKeywordStrategy() *quickKeywordStrategy {
	return &quickKeywordStrategy{
		calendarPatterns: compileAll(
			`what'?s\s+on\s+(?:my\s+)?calendar`,
			`what\s+is\s+on\s+(?:my\s+)?calendar`,
			`show\s+(?:my\s+)?calendar`,
			`check\s+(?:my\s+)?calendar`,
		),
		keywords: []keywordMapping{
			{"email", models.IntentSendEmail},
			{"meeting", models.IntentScheduleMeeting},
			{"calendar", models.IntentCheckCalendar},
			// A bare "schedule" is a calendar query; "schedule a meeting"
			// already matched on "meeting" above.
			{"schedule", models.IntentCheckCalendar},
			{"contact", models.IntentFindContact},
			{"free time", models.IntentCheckFreeSlots},
			{"availability", models.IntentCheckFreeSlots},
		},
	}
}

func (s *quickKeywordStrategy) Name() string { return "quick_keywords" }

func (s *quickKeywordStrategy) TryClassify(_ context.Context, message string) (*models.IntentResult, error) {
	text := strings.ToLower(message)

	for _, pattern := range s.calendarPatterns {
		if pattern.MatchString(text) {
			return &models.IntentResult{Intent: models.IntentCheckCalendar, Confidence: 0.95}, nil
		}
	}

	for _, mapping := range s.keywords {
		if strings.Contains(text, mapping.keyword) {
			return &models.IntentResult{Intent: mapping.intent, Confidence: 0.9}, nil
		}
	}

	return nil, nil
}

// zeroShotStrategy scores the message against every candidate label and
// keeps the argmax, but only when it clears the confidence floor. A
// low-confidence statistical result is never returned; control falls
// through to the rule-based stage instead.
type zeroShotStrategy struct {
	scorer *ZeroShotScorer
	floor  float64
}

func (s *zeroShotStrategy) Name() string { return "zero_shot" }

func (s *zeroShotStrategy) TryClassify(_ context.Context, message string) (*models.IntentResult, error) {
	best := s.scorer.Best(message)
	if best == nil || best.Score < s.floor {
		return nil, nil
	}
	return &models.IntentResult{Intent: best.Intent, Confidence: best.Score}, nil
}

// ruleBasedStrategy is the final fallback. Pattern groups are checked in
// a fixed priority order (calendar first, as those queries are the most
// common), each matching at 0.9; a loose keyword table follows at 0.7;
// anything else is unknown at 0.3.
type ruleBasedStrategy struct {
	groups   []patternGroup
	keywords []keywordMapping
}

type patternGroup struct {
	intent   models.Intent
	patterns []*regexp.Regexp
}

func newRuleBasedStrategy() *ruleBasedStrategy {
	return &ruleBasedStrategy{
		groups: []patternGroup{
			{models.IntentCheckCalendar, compileAll(
				`what'?s\s+on\s+(?:my\s+)?calendar`,
				`what\s+is\s+on\s+(?:my\s+)?calendar`,
				`check\s+(?:my\s+)?calendar`,
				`show\s+(?:my\s+)?calendar`,
				`what\s+do\s+i\s+have\s+(?:on|for|scheduled)`,
				`calendar\s+for\s+today`,
				`today'?s\s+(?:events|calendar|schedule)`,
				`my\s+events`,
				`my\s+schedule`,
				`my\s+agenda`,
				`what\s+events`,
				`any\s+events`,
				`appointments\s+(?:today|tomorrow|this week)`,
				`meetings\s+(?:today|tomorrow|this week)`,
			)},
			{models.IntentSendEmail, compileAll(
				`send\s+(?:an\s+)?email`,
				`write\s+(?:an\s+)?email`,
				`email\s+to`,
				`compose\s+(?:an\s+)?email`,
				`send\s+(?:a\s+)?message\s+to`,
			)},
			{models.IntentScheduleMeeting, compileAll(
				`schedule\s+(?:a\s+)?meeting`,
				`set\s+up\s+(?:a\s+)?meeting`,
				`book\s+(?:a\s+)?meeting`,
				`arrange\s+(?:a\s+)?meeting`,
				`plan\s+(?:a\s+)?meeting`,
				`set\s+(?:a\s+)?appointment`,
			)},
			{models.IntentFindContact, compileAll(
				`find\s+contact`,
				`find\s+(?:the\s+)?email\s+(?:address\s+)?(?:for|of)`,
				`get\s+contact\s+(?:info|information)`,
				`look\s+up\s+contact`,
				`search\s+(?:for\s+)?contact`,
				`who\s+is`,
				`contact\s+information`,
				`contact\s+details`,
			)},
			{models.IntentCheckFreeSlots, compileAll(
				`find\s+(?:a\s+)?free\s+(?:slot|time)`,
				`check\s+(?:my\s+)?availability`,
				`when\s+am\s+i\s+free`,
				`available\s+(?:slot|time)`,
				`open\s+(?:slot|time)`,
				`free\s+time`,
			)},
		},
		keywords: []keywordMapping{
			{"email", models.IntentSendEmail},
			{"mail", models.IntentSendEmail},
			{"message", models.IntentSendEmail},
			{"meeting", models.IntentScheduleMeeting},
			{"schedule", models.IntentScheduleMeeting},
			{"appointment", models.IntentScheduleMeeting},
			{"calendar", models.IntentCheckCalendar},
			{"events", models.IntentCheckCalendar},
			{"agenda", models.IntentCheckCalendar},
			{"contact", models.IntentFindContact},
			{"find", models.IntentFindContact},
			{"who is", models.IntentFindContact},
			{"availability", models.IntentCheckFreeSlots},
			{"free time", models.IntentCheckFreeSlots},
			{"when am i free", models.IntentCheckFreeSlots},
		},
	}
}

func (s *ruleBasedStrategy) Name() string { return "rule_based" }

func (s *ruleBasedStrategy) TryClassify(_ context.Context, message string) (*models.IntentResult, error) {
	if strings.TrimSpace(message) == "" {
		return &models.IntentResult{Intent: models.IntentUnknown, Confidence: 0.0}, nil
	}

	text := strings.ToLower(message)

	for _, group := range s.groups {
		for _, pattern := range group.patterns {
			if pattern.MatchString(text) {
				return &models.IntentResult{Intent: group.intent, Confidence: 0.9}, nil
			}
		}
	}

	for _, mapping := range s.keywords {
		if strings.Contains(text, mapping.keyword) {
			return &models.IntentResult{Intent: mapping.intent, Confidence: 0.7}, nil
		}
	}

	return &models.IntentResult{Intent: models.IntentUnknown, Confidence: 0.3}, nil
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}
