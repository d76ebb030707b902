package nlp

import (
	"sort"
	"strings"

	"github.com/mshogin/assistant/internal/domain/models"
)

// ZeroShotScorer scores a message against the fixed candidate label set
// without per-label training examples.
//
// Each label carries a weighted cue-term table; the raw evidence for a
// label is the summed weight of cue terms present in the message, mapped
// into [0,1) with the saturating transform s/(s+0.9). One strong cue
// lands just above 0.5, two independent cues clear the 0.65 acceptance
// floor applied by the classifier.
//
// The scorer is a pure function of the input text: no randomness, no
// hidden state, so the statistical stage stays deterministic.
type ZeroShotScorer struct {
	labels []labelHypothesis
}

type labelHypothesis struct {
	intent models.Intent
	label  string
	terms  []cueTerm
}

type cueTerm struct {
	term   string
	weight float64
}

// LabelScore is the score assigned to one candidate label.
type LabelScore struct {
	Intent models.Intent
	Label  string
	Score  float64
}

// NewZeroShotScorer builds the scorer with the fixed label set.
func NewZeroShotScorer() *ZeroShotScorer {
	return &ZeroShotScorer{
		labels: []labelHypothesis{
			{
				intent: models.IntentSendEmail,
				label:  "sending an email",
				terms: []cueTerm{
					{"send", 0.6}, {"write", 0.6}, {"compose", 1.0},
					{"mail", 1.0}, {"message", 0.5}, {"letter", 0.5},
					{"reply", 0.5}, {"inbox", 0.5},
				},
			},
			{
				intent: models.IntentScheduleMeeting,
				label:  "scheduling a meeting",
				terms: []cueTerm{
					{"schedule", 0.6}, {"book", 0.6}, {"arrange", 0.6},
					{"appointment", 1.0}, {"meet", 0.6}, {"invite", 0.5},
					{"sync up", 0.6}, {"catch up", 0.5},
				},
			},
			{
				intent: models.IntentCheckCalendar,
				label:  "checking calendar",
				terms: []cueTerm{
					{"agenda", 1.0}, {"events", 0.6}, {"upcoming", 0.6},
					{"planned", 0.5}, {"scheduled", 0.5}, {"what do i have", 1.0},
				},
			},
			{
				intent: models.IntentFindContact,
				label:  "finding contact information",
				terms: []cueTerm{
					{"who is", 1.0}, {"phone", 0.6}, {"reach", 0.6},
					{"lookup", 0.6}, {"look up", 0.6}, {"address", 0.5},
					{"details", 0.4}, {"number", 0.4},
				},
			},
			{
				intent: models.IntentCheckFreeSlots,
				label:  "checking availability",
				terms: []cueTerm{
					{"free", 0.6}, {"available", 0.6}, {"open slot", 1.0},
					{"time slot", 0.8}, {"when can", 0.6},
				},
			},
		},
	}
}

// Score returns one score per candidate label, ordered best first.
// Ties keep the fixed label order, so the result is deterministic.
func (z *ZeroShotScorer) Score(message string) []LabelScore {
	text := strings.ToLower(message)

	scores := make([]LabelScore, 0, len(z.labels))
	for _, label := range z.labels {
		evidence := 0.0
		for _, cue := range label.terms {
			if strings.Contains(text, cue.term) {
				evidence += cue.weight
			}
		}
		scores = append(scores, LabelScore{
			Intent: label.intent,
			Label:  label.label,
			Score:  evidence / (evidence + 0.9),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	return scores
}

// Best returns the argmax label score, or nil for empty input.
func (z *ZeroShotScorer) Best(message string) *LabelScore {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	scores := z.Score(message)
	if len(scores) == 0 {
		return nil
	}
	return &scores[0]
}
