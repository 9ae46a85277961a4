package actions

import "strings"

var affirmativeReplies = map[string]bool{
	"y": true, "yes": true, "yeah": true, "yep": true, "yup": true, "sure": true,
	"ok": true, "okay": true, "confirm": true, "confirmed": true, "do it": true,
	"go ahead": true, "yes please": true, "please do": true, "correct": true,
	"sounds good": true, "approve": true, "yes do it": true, "yes go ahead": true,
}

var negativeReplies = map[string]bool{
	"n": true, "no": true, "nope": true, "nah": true, "cancel": true, "stop": true,
	"don't": true, "dont": true, "never mind": true, "nevermind": true, "abort": true,
	"no thanks": true, "decline": true, "no cancel": true, "cancel that": true, "forget it": true,
}

// ParseReply classifies a short confirmation reply. ok is false for anything
// that is not clearly a yes or a no.
func ParseReply(text string) (accept bool, ok bool) {
	key := strings.ToLower(strings.TrimSpace(text))
	key = strings.Trim(key, ".!,? ")
	key = strings.Join(strings.Fields(strings.ReplaceAll(key, ",", " ")), " ")
	switch {
	case affirmativeReplies[key]:
		return true, true
	case negativeReplies[key]:
		return false, true
	}
	return false, false
}
