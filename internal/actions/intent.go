// Package actions turns free-text agent utterances into confirmed,
// transactionally executed CRM mutations.
package actions

import "strings"

// Intent is the closed set of actions an utterance can request. Adding an
// action means adding a constant here plus one planner and one executor case.
type Intent string

const (
	IntentNone             Intent = "none"
	IntentUpdateLeadStatus Intent = "update_lead_status"
	IntentLogInteraction   Intent = "log_interaction"
	IntentScheduleFollowUp Intent = "schedule_follow_up"
)

// ActionIntents lists the intents that mutate CRM state.
var ActionIntents = []Intent{IntentUpdateLeadStatus, IntentLogInteraction, IntentScheduleFollowUp}

// IsAction reports whether i is one of the mutating intents.
func (i Intent) IsAction() bool {
	for _, a := range ActionIntents {
		if i == a {
			return true
		}
	}
	return false
}

// ParseIntent accepts the canonical names plus the CamelCase spelling models
// tend to echo back ("UpdateLeadStatus").
func ParseIntent(raw string) (Intent, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch strings.ReplaceAll(key, "_", "") {
	case "none", "noaction", "":
		return IntentNone, true
	case "updateleadstatus", "updatestatus":
		return IntentUpdateLeadStatus, true
	case "loginteraction", "interaction":
		return IntentLogInteraction, true
	case "schedulefollowup", "followup":
		return IntentScheduleFollowUp, true
	}
	return IntentNone, false
}

// Source records which classifier produced a result.
type Source string

const (
	SourceRule     Source = "rule"
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Classification is an intent with a confidence in [0,1].
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
