package actions

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/wolfman30/realty-ai-platform/internal/crm"
)

// EntityExtractor pulls the slots an intent needs out of raw text. It is purely
// lexical: names are not checked against CRM records here.
type EntityExtractor interface {
	Extract(text string, intent Intent) (Slots, error)
}

// Slots holds the raw values found in an utterance.
type Slots struct {
	Subject         string              `json:"subject,omitempty"`
	Status          string              `json:"status,omitempty"`
	InteractionType crm.InteractionType `json:"interaction_type,omitempty"`
	Note            string              `json:"note,omitempty"`
	DatePhrase      string              `json:"date_phrase,omitempty"`
}

const statusVerbs = `(?:please\s+)?(?:update|change|set|move|mark|switch|put)`

var (
	reStatusOf = regexp.MustCompile(`(?i)^` + statusVerbs + `\s+(?:the\s+)?(?:lead\s+)?(?:status|stage)\s+(?:of|for|on)\s+(.+?)\s+(?:to|as|into)\s+(.+)$`)
	reStatusTo = regexp.MustCompile(`(?i)^` + statusVerbs + `\s+(.+?)(?:'s|’s)?(?:\s+(?:lead\s+)?(?:status|stage))?\s+(?:to|as|into)\s+(.+)$`)
	reStatusIs = regexp.MustCompile(`(?i)^(.+?)\s+(?:is now|is|has become|became|moved to)\s+(.+)$`)
	reStatusNo = regexp.MustCompile(`(?i)^` + statusVerbs + `\s+(?:the\s+)?(?:(?:status|stage)\s+(?:of|for|on)\s+)?(.+?)(?:'s|’s)?(?:\s+(?:lead\s+)?(?:status|stage))?$`)

	reNoteMarker  = regexp.MustCompile(`(?i)(?:\b(?:about|regarding|re|to discuss|to talk about|for)\b|[:–—]|\s-\s)`)
	reCommandHead = regexp.MustCompile(`(?i)^(?:please\s+)?(?:(?:log|record|add|make|jot down|save)\s+(?:a\s+|an\s+|the\s+)?(?:note|interaction|call|meeting|viewing|showing|email)?\s*(?:that|:)?|note\s+(?:that|:)?)\s*`)
)

var interactionCues = []struct {
	typ crm.InteractionType
	re  *regexp.Regexp
}{
	{crm.InteractionViewing, regexp.MustCompile(`(?i)\b(?:viewing|viewed|showed|showing|toured|tour|walkthrough|walk-through|open house)\b`)},
	{crm.InteractionMeeting, regexp.MustCompile(`(?i)\b(?:met|meeting|meet|sat down with|coffee with|lunch with)\b`)},
	{crm.InteractionCall, regexp.MustCompile(`(?i)\b(?:called|call|calls|phoned|phone call|rang|spoke (?:to|with)|talked (?:to|with))\b`)},
	{crm.InteractionEmail, regexp.MustCompile(`(?i)\b(?:emailed|email|e-mail|sent an email)\b`)},
}

var (
	interactionAnchors = anchorPatterns("with", "to", "called", "phoned", "rang", "emailed", "texted", "met", "showed", "toured", "about", "for", "on")
	followUpAnchors    = anchorPatterns("follow up with", "follow-up with", "followup with", "check in with", "reach out to", "with", "for", "call", "email", "text", "contact", "meet", "ping", "see")
)

func anchorPatterns(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\s+`)
	}
	return out
}

var nameStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "but": true, "so": true, "or": true,
	"about": true, "re": true, "regarding": true, "to": true, "for": true, "on": true, "at": true,
	"in": true, "from": true, "with": true, "by": true, "of": true, "that": true, "this": true,
	"who": true, "he": true, "she": true, "they": true, "it": true, "is": true, "was": true,
	"were": true, "went": true, "said": true, "says": true, "wants": true, "needs": true,
	"again": true, "earlier": true, "last": true, "next": true, "after": true, "before": true,
	"because": true, "since": true, "while": true, "today": true, "yesterday": true,
	"tomorrow": true, "tonight": true, "morning": true, "afternoon": true, "evening": true,
	"noon": true, "asap": true, "soon": true, "please": true, "status": true, "stage": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true, "mon": true, "tue": true, "wed": true, "thu": true,
	"fri": true, "sat": true, "sun": true, "jan": true, "january": true, "feb": true,
	"february": true, "march": true, "april": true, "june": true, "july": true,
	"august": true, "september": true, "october": true, "november": true, "december": true,
	"up": true, "back": true, "me": true, "my": true, "our": true, "their": true, "them": true,
	"him": true, "her": true,
}

var subjectPrefixes = []string{"the lead ", "lead ", "client ", "the client ", "my client ", "my lead ", "buyer ", "seller "}

// RuleExtractor implements EntityExtractor with patterns and a name reader.
type RuleExtractor struct{}

func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

func (e *RuleExtractor) Extract(text string, intent Intent) (Slots, error) {
	text = strings.TrimSpace(text)
	switch intent {
	case IntentUpdateLeadStatus:
		return e.extractStatus(text)
	case IntentLogInteraction:
		return e.extractInteraction(text)
	case IntentScheduleFollowUp:
		return e.extractFollowUp(text)
	}
	return Slots{}, &ExtractionError{Intent: intent, Missing: SlotSubject}
}

func (e *RuleExtractor) extractStatus(text string) (Slots, error) {
	body := trimSentence(text)
	var subject, status string
	if m := reStatusOf.FindStringSubmatch(body); m != nil {
		subject, status = m[1], m[2]
	} else if m := reStatusTo.FindStringSubmatch(body); m != nil {
		subject, status = m[1], m[2]
	} else if m := reStatusIs.FindStringSubmatch(body); m != nil {
		if _, ok := crm.ParseLeadStatus(cleanStatus(m[2])); ok {
			subject, status = m[1], m[2]
		}
	}
	if subject == "" {
		if m := reStatusNo.FindStringSubmatch(body); m != nil {
			subject = m[1]
		}
	}

	slots := Slots{Subject: cleanSubject(subject), Status: cleanStatus(status)}
	if slots.Subject == "" {
		return slots, &ExtractionError{Intent: IntentUpdateLeadStatus, Missing: SlotSubject}
	}
	if slots.Status == "" {
		return slots, &ExtractionError{Intent: IntentUpdateLeadStatus, Missing: SlotStatus}
	}
	return slots, nil
}

func (e *RuleExtractor) extractInteraction(text string) (Slots, error) {
	slots := Slots{InteractionType: interactionType(text)}
	subject, rest := findSubject(text, interactionAnchors)
	if subject == "" {
		return slots, &ExtractionError{Intent: IntentLogInteraction, Missing: SlotSubject}
	}
	slots.Subject = subject

	note := strings.TrimSpace(stripLeadingConnectors(rest))
	if note == "" {
		note = strings.TrimSpace(reCommandHead.ReplaceAllString(trimSentence(text), ""))
	}
	slots.Note = trimSentence(note)
	if slots.Note == "" {
		return slots, &ExtractionError{Intent: IntentLogInteraction, Missing: SlotNote}
	}
	return slots, nil
}

func (e *RuleExtractor) extractFollowUp(text string) (Slots, error) {
	subject, rest := findSubject(text, followUpAnchors)
	if subject == "" {
		return Slots{}, &ExtractionError{Intent: IntentScheduleFollowUp, Missing: SlotSubject}
	}
	slots := Slots{Subject: subject}

	switch {
	case HasDateCue(rest):
		slots.DatePhrase = strings.TrimSpace(rest)
	case HasDateCue(text):
		slots.DatePhrase = text
	default:
		return slots, &ExtractionError{Intent: IntentScheduleFollowUp, Missing: SlotDateTime}
	}

	// "for tomorrow at 2pm" is the date, not a note.
	for _, loc := range reNoteMarker.FindAllStringIndex(rest, -1) {
		after := strings.TrimSpace(rest[loc[1]:])
		if after == "" || leadsWithDateCue(after) {
			continue
		}
		slots.Note = trimSentence(after)
		break
	}
	return slots, nil
}

// findSubject tries each anchor, leftmost occurrence first, and reads a person
// name after it. It returns the name and the text following it.
func findSubject(text string, anchors []*regexp.Regexp) (string, string) {
	type hit struct {
		pos, end int
	}
	var hits []hit
	for _, re := range anchors {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{pos: loc[0], end: loc[1]})
		}
	}
	for len(hits) > 0 {
		best := 0
		for i, h := range hits {
			if h.pos < hits[best].pos || (h.pos == hits[best].pos && h.end > hits[best].end) {
				best = i
			}
		}
		h := hits[best]
		hits = append(hits[:best], hits[best+1:]...)
		if name, rest := readName(text[h.end:]); name != "" {
			return name, rest
		}
	}
	return "", ""
}

// readName consumes up to three name-like words. Punctuation or a possessive
// ends the name; so does a lowercase word after a capitalized one.
func readName(s string) (string, string) {
	s = strings.TrimLeft(s, " ")
	for _, p := range subjectPrefixes {
		if strings.HasPrefix(strings.ToLower(s), p) {
			s = s[len(p):]
			break
		}
	}

	var words []string
	capitalized := false
	rest := s
	for len(words) < 3 {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			end = len(rest)
		}
		raw := rest[:end]
		word := strings.TrimRight(raw, ",.:;!?")
		terminal := word != raw
		if w, ok := trimPossessive(word); ok {
			word, terminal = w, true
		}
		if !isNameWord(word) || nameStopWords[strings.ToLower(word)] {
			break
		}
		upper := unicode.IsUpper([]rune(word)[0])
		if len(words) == 0 {
			capitalized = upper
		} else if capitalized && !upper {
			break
		}
		words = append(words, word)
		rest = rest[end:]
		if terminal {
			break
		}
	}
	return strings.Join(words, " "), rest
}

func trimPossessive(word string) (string, bool) {
	for _, suffix := range []string{"'s", "’s"} {
		if strings.HasSuffix(strings.ToLower(word), suffix) {
			return word[:len(word)-len(suffix)], true
		}
	}
	return word, false
}

func isNameWord(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) && r != '\'' && r != '-' && r != '’' {
			return false
		}
	}
	return true
}

func interactionType(text string) crm.InteractionType {
	best, bestPos := crm.InteractionNote, -1
	for _, cue := range interactionCues {
		if loc := cue.re.FindStringIndex(text); loc != nil && (bestPos < 0 || loc[0] < bestPos) {
			best, bestPos = cue.typ, loc[0]
		}
	}
	return best
}

func stripLeadingConnectors(s string) string {
	s = strings.TrimLeft(s, " ,:;-–—")
	for {
		lower := strings.ToLower(s)
		trimmed := false
		for _, c := range []string{"about ", "regarding ", "re ", "re: ", "that ", "and "} {
			if strings.HasPrefix(lower, c) {
				s = strings.TrimLeft(s[len(c):], " ,:;-")
				trimmed = true
				break
			}
		}
		if !trimmed {
			return s
		}
	}
}

func cleanSubject(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range subjectPrefixes {
		if strings.HasPrefix(lower, p) {
			s = s[len(p):]
			break
		}
	}
	s, _ = trimPossessive(strings.TrimRight(s, ",.:;!? "))
	s = strings.TrimSpace(s)
	if nameStopWords[strings.ToLower(s)] {
		return ""
	}
	return s
}

func cleanStatus(s string) string {
	s = strings.ToLower(trimSentence(s))
	s = strings.TrimPrefix(s, "be ")
	s = strings.TrimPrefix(s, "the ")
	s = strings.TrimSuffix(s, " please")
	return strings.TrimSpace(s)
}

func trimSentence(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ".!?"))
}
