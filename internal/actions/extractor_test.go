package actions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/realty-ai-platform/internal/crm"
)

func TestExtractStatusSlots(t *testing.T) {
	cases := []struct {
		text, subject, status string
	}{
		{"Update John Doe's status to qualified", "John Doe", "qualified"},
		{"Mark Sarah Smith as Negotiating.", "Sarah Smith", "negotiating"},
		{"move jane to closed won", "jane", "closed won"},
		{"Set the status of John Doe to contacted", "John Doe", "contacted"},
		{"change lead Maria Lopez stage to follow up please", "Maria Lopez", "follow up"},
		{"John Doe is now negotiating", "John Doe", "negotiating"},
	}
	x := NewRuleExtractor()
	for _, tc := range cases {
		slots, err := x.Extract(tc.text, IntentUpdateLeadStatus)
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.subject, slots.Subject, tc.text)
		assert.Equal(t, tc.status, slots.Status, tc.text)
	}
}

func TestExtractStatusMissingSlots(t *testing.T) {
	x := NewRuleExtractor()

	_, err := x.Extract("Update John Doe's status", IntentUpdateLeadStatus)
	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr), "got %v", err)
	assert.Equal(t, SlotStatus, extErr.Missing)

	_, err = x.Extract("please update the status", IntentUpdateLeadStatus)
	require.True(t, errors.As(err, &extErr), "got %v", err)
	assert.Equal(t, SlotSubject, extErr.Missing)
}

func TestExtractInteractionSlots(t *testing.T) {
	cases := []struct {
		text    string
		subject string
		typ     crm.InteractionType
		note    string
	}{
		{"Note that call with John went well", "John", crm.InteractionCall, "went well"},
		{"I called Sarah Smith, she wants a 3 bed", "Sarah Smith", crm.InteractionCall, "she wants a 3 bed"},
		{"Log a meeting with john doe about the listing price", "john doe", crm.InteractionMeeting, "the listing price"},
		{"Showed 12 Oak St to Maria Lopez - loved the kitchen", "Maria Lopez", crm.InteractionViewing, "loved the kitchen"},
		{"Emailed Ben Carter the disclosures", "Ben Carter", crm.InteractionEmail, "the disclosures"},
		{"Add a note for Sarah Smith: prefers condos", "Sarah Smith", crm.InteractionNote, "prefers condos"},
	}
	x := NewRuleExtractor()
	for _, tc := range cases {
		slots, err := x.Extract(tc.text, IntentLogInteraction)
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.subject, slots.Subject, tc.text)
		assert.Equal(t, tc.typ, slots.InteractionType, tc.text)
		assert.Equal(t, tc.note, slots.Note, tc.text)
	}
}

func TestExtractInteractionFallsBackToWholeUtteranceForNote(t *testing.T) {
	slots, err := NewRuleExtractor().Extract("Just called John Doe.", IntentLogInteraction)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", slots.Subject)
	assert.Equal(t, crm.InteractionCall, slots.InteractionType)
	assert.Equal(t, "Just called John Doe", slots.Note)
}

func TestExtractFollowUpSlots(t *testing.T) {
	cases := []struct {
		text, subject, date, note string
	}{
		{"Schedule a follow-up with Sarah Smith tomorrow at 2pm", "Sarah Smith", "tomorrow at 2pm", ""},
		{"Remind me to call John Doe next Monday about the offer", "John Doe", "next Monday about the offer", "the offer"},
		{"follow up with maria lopez on friday", "maria lopez", "on friday", ""},
		{"Book a viewing for Ben Carter Jan 20 at 11am", "Ben Carter", "Jan 20 at 11am", ""},
		{"Schedule a follow-up with Sarah Smith for tomorrow at 2pm", "Sarah Smith", "for tomorrow at 2pm", ""},
		{"Schedule a follow-up with Sarah Smith for tomorrow at 2pm about the listing", "Sarah Smith", "for tomorrow at 2pm about the listing", "the listing"},
	}
	x := NewRuleExtractor()
	for _, tc := range cases {
		slots, err := x.Extract(tc.text, IntentScheduleFollowUp)
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.subject, slots.Subject, tc.text)
		assert.Equal(t, tc.date, slots.DatePhrase, tc.text)
		assert.Equal(t, tc.note, slots.Note, tc.text)
	}
}

func TestExtractFollowUpMissingDate(t *testing.T) {
	_, err := NewRuleExtractor().Extract("Remind me to call John Doe", IntentScheduleFollowUp)
	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr), "got %v", err)
	assert.Equal(t, SlotDateTime, extErr.Missing)
}

func TestExtractFollowUpDateBeforeSubject(t *testing.T) {
	slots, err := NewRuleExtractor().Extract("Tomorrow at 9am remind me to call Sarah Smith", IntentScheduleFollowUp)
	require.NoError(t, err)
	assert.Equal(t, "Sarah Smith", slots.Subject)
	assert.Equal(t, "Tomorrow at 9am remind me to call Sarah Smith", slots.DatePhrase)
}
