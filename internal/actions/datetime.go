package actions

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultFollowUpHour is the local hour used when a phrase names a day but no time.
const DefaultFollowUpHour = 10

var (
	reDayAfterTomorrow = regexp.MustCompile(`\bday after (?:tomorrow|tmrw|tmr)\b`)
	reTomorrow         = regexp.MustCompile(`\b(?:tomorrow|tmrw|tmr)\b`)
	reTonight          = regexp.MustCompile(`\btonight\b`)
	reToday            = regexp.MustCompile(`\btoday\b`)
	reInN              = regexp.MustCompile(`\bin (\d{1,3}|a|an|one|two|three|four|five|six|seven|eight|nine|ten) (day|days|week|weeks)\b`)
	reNextWeek         = regexp.MustCompile(`\bnext week\b`)
	reWeekday          = regexp.MustCompile(`\b(?:next |this |on )?(monday|mon|tuesday|tues|tue|wednesday|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat|sunday|sun)\b`)
	reMonthDay         = regexp.MustCompile(`\b(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december) (\d{1,2})(?:st|nd|rd|th)?\b`)
	reDayMonth         = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)? (?:of )?(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)\b`)
	reNumericDate      = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)

	reClock12 = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))? ?(am|pm)\b`)
	reClock24 = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	reNoon    = regexp.MustCompile(`\b(?:noon|midday)\b`)
	reBareAt  = regexp.MustCompile(`\bat (\d{1,2})\b`)
	reDayPart = regexp.MustCompile(`\b(morning|afternoon|evening|tonight)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tues": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thurs": time.Thursday, "thur": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var smallNumbers = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var dayPartHours = map[string]int{
	"morning":   9,
	"afternoon": 14,
	"evening":   18,
	"tonight":   19,
}

// DateTimeResolver turns relative phrases into absolute timestamps in the
// reference time's location. It is a pure function of (phrase, ref).
type DateTimeResolver struct {
	DefaultHour int
}

func NewDateTimeResolver() *DateTimeResolver {
	return &DateTimeResolver{DefaultHour: DefaultFollowUpHour}
}

type clock struct {
	hour, minute int
	found        bool
}

// Resolve returns the first instant described by phrase that is strictly after
// ref. A day without a time gets DefaultHour (or the part-of-day hour); a time
// without a day is today, or tomorrow once that time has passed.
func (r *DateTimeResolver) Resolve(phrase string, ref time.Time) (time.Time, error) {
	text := normalizeDateText(phrase)
	if text == "" {
		return time.Time{}, &ResolutionError{Phrase: phrase, Reason: "empty phrase"}
	}

	day, dayFound, err := resolveDay(text, ref)
	if err != nil {
		return time.Time{}, &ResolutionError{Phrase: phrase, Reason: err.Error()}
	}
	clk, err := resolveClock(text)
	if err != nil {
		return time.Time{}, &ResolutionError{Phrase: phrase, Reason: err.Error()}
	}
	if !dayFound && !clk.found {
		return time.Time{}, &ResolutionError{Phrase: phrase, Reason: "no date or time found"}
	}

	loc := ref.Location()
	if !dayFound {
		at := time.Date(ref.Year(), ref.Month(), ref.Day(), clk.hour, clk.minute, 0, 0, loc)
		if !at.After(ref) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil
	}

	if !clk.found {
		clk.hour = r.DefaultHour
	}
	at := time.Date(day.Year(), day.Month(), day.Day(), clk.hour, clk.minute, 0, 0, loc)
	if !at.After(ref) {
		return time.Time{}, &ResolutionError{Phrase: phrase, Reason: "time is in the past"}
	}
	return at, nil
}

var dateCuePatterns = []*regexp.Regexp{
	reDayAfterTomorrow, reTomorrow, reTonight, reToday, reInN, reNextWeek, reWeekday, reMonthDay,
	reDayMonth, reNumericDate, reClock12, reClock24, reNoon, reBareAt, reDayPart,
}

// HasDateCue reports whether text contains anything the resolver would try to
// interpret as a date or time.
func HasDateCue(text string) bool {
	text = normalizeDateText(text)
	for _, re := range dateCuePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// leadsWithDateCue reports whether text opens with a date or time phrase.
func leadsWithDateCue(text string) bool {
	text = normalizeDateText(text)
	for _, re := range dateCuePatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			return true
		}
	}
	return false
}

func normalizeDateText(raw string) string {
	text := strings.ToLower(strings.TrimSpace(raw))
	text = strings.NewReplacer("a.m.", "am", "p.m.", "pm", ",", " ", ".", " ", "!", " ", "?", " ").Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

type dayError string

func (e dayError) Error() string { return string(e) }

func resolveDay(text string, ref time.Time) (time.Time, bool, error) {
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())

	switch {
	case reDayAfterTomorrow.MatchString(text):
		return today.AddDate(0, 0, 2), true, nil
	case reTomorrow.MatchString(text):
		return today.AddDate(0, 0, 1), true, nil
	case reTonight.MatchString(text), reToday.MatchString(text):
		return today, true, nil
	}

	if m := reInN.FindStringSubmatch(text); m != nil {
		n, ok := smallNumbers[m[1]]
		if !ok {
			n, _ = strconv.Atoi(m[1])
		}
		if n <= 0 {
			return time.Time{}, false, dayError("offset must be positive")
		}
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		return today.AddDate(0, 0, n), true, nil
	}

	if reNextWeek.MatchString(text) {
		return today.AddDate(0, 0, daysUntil(ref.Weekday(), time.Monday)), true, nil
	}

	if m := reWeekday.FindStringSubmatch(text); m != nil {
		return today.AddDate(0, 0, daysUntil(ref.Weekday(), weekdays[m[1]])), true, nil
	}

	if m := reMonthDay.FindStringSubmatch(text); m != nil {
		d, _ := strconv.Atoi(m[2])
		return calendarDate(today, months[m[1]], d, 0)
	}
	if m := reDayMonth.FindStringSubmatch(text); m != nil {
		d, _ := strconv.Atoi(m[1])
		return calendarDate(today, months[m[2]], d, 0)
	}
	if m := reNumericDate.FindStringSubmatch(text); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		if mo < 1 || mo > 12 {
			return time.Time{}, false, dayError("month out of range")
		}
		year := 0
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		return calendarDate(today, time.Month(mo), d, year)
	}
	return time.Time{}, false, nil
}

// daysUntil counts days to the next target weekday strictly after from.
func daysUntil(from, target time.Weekday) int {
	delta := (int(target) - int(from) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return delta
}

// calendarDate builds month/day in today's year (or year when non-zero),
// rolling an already-past date to next year.
func calendarDate(today time.Time, month time.Month, day, year int) (time.Time, bool, error) {
	explicitYear := year != 0
	if !explicitYear {
		year = today.Year()
	}
	date := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
	if date.Day() != day || date.Month() != month {
		return time.Time{}, false, dayError("no such calendar day")
	}
	if !explicitYear && date.Before(today) {
		date = date.AddDate(1, 0, 0)
		if date.Day() != day {
			return time.Time{}, false, dayError("no such calendar day")
		}
	}
	return date, true, nil
}

func resolveClock(text string) (clock, error) {
	part := ""
	if m := reDayPart.FindStringSubmatch(text); m != nil {
		part = m[1]
	}

	if m := reClock12.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins := 0
		if m[2] != "" {
			mins, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 || mins > 59 {
			return clock{}, dayError("invalid clock time")
		}
		if m[3] == "pm" && h != 12 {
			h += 12
		}
		if m[3] == "am" && h == 12 {
			h = 0
		}
		return clock{hour: h, minute: mins, found: true}, nil
	}

	if m := reClock24.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		if len(m[1]) == 1 && h >= 1 && h <= 7 {
			h += 12
		}
		return clock{hour: pmBias(h, part), minute: mins, found: true}, nil
	}

	if reNoon.MatchString(text) {
		return clock{hour: 12, found: true}, nil
	}

	if m := reBareAt.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		switch {
		case h >= 1 && h <= 7:
			h += 12
		case h >= 8 && h <= 23:
			h = pmBias(h, part)
		default:
			return clock{}, dayError("invalid clock time")
		}
		return clock{hour: h, found: true}, nil
	}

	if part != "" {
		return clock{hour: dayPartHours[part], found: true}, nil
	}
	return clock{}, nil
}

// pmBias reads an ambiguous hour as PM when the phrase says afternoon or later.
func pmBias(hour int, part string) int {
	if hour < 12 && (part == "afternoon" || part == "evening" || part == "tonight") {
		return hour + 12
	}
	return hour
}
