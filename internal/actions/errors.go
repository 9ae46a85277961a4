package actions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/realty-ai-platform/internal/crm"
)

var (
	ErrPlanExpired   = errors.New("actions: plan expired")
	ErrNoPendingPlan = errors.New("actions: no pending plan")
	ErrPlanNotOwned  = errors.New("actions: plan belongs to another agent")
)

// Slot names a piece of information an intent needs.
type Slot string

const (
	SlotSubject         Slot = "subject"
	SlotStatus          Slot = "status"
	SlotInteractionType Slot = "interaction_type"
	SlotNote            Slot = "note"
	SlotDateTime        Slot = "datetime"
)

// ExtractionError reports a required slot that could not be found.
type ExtractionError struct {
	Intent  Intent
	Missing Slot
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("actions: %s is missing %s", e.Intent, e.Missing)
}

type AmbiguousSubjectError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguousSubjectError) Error() string {
	return fmt.Sprintf("actions: %q matches %d leads", e.Name, len(e.Candidates))
}

type SubjectNotFoundError struct {
	Name string
}

func (e *SubjectNotFoundError) Error() string {
	return fmt.Sprintf("actions: no lead matches %q", e.Name)
}

// ResolutionError reports a datetime phrase that could not be turned into a
// future timestamp.
type ResolutionError struct {
	Phrase string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("actions: cannot resolve %q: %s", e.Phrase, e.Reason)
}

type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("actions: %q is not a lead status", e.Value)
}

// StatusUnchangedError is returned when the requested status equals the current one.
type StatusUnchangedError struct {
	LeadName string
	Status   crm.LeadStatus
}

func (e *StatusUnchangedError) Error() string {
	return fmt.Sprintf("actions: %s is already %s", e.LeadName, e.Status)
}

// ExecutionError wraps a failed execution transaction. Nothing was committed.
type ExecutionError struct {
	PlanID string
	Intent Intent
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("actions: execute plan %s (%s): %v", e.PlanID, e.Intent, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Code identifies a recoverable condition in responses.
type Code string

const (
	CodeMissingSlot      Code = "missing_slot"
	CodeAmbiguousSubject Code = "ambiguous_subject"
	CodeSubjectNotFound  Code = "subject_not_found"
	CodeUnresolvedDate   Code = "unresolved_datetime"
	CodeInvalidStatus    Code = "invalid_status"
	CodeStatusUnchanged  Code = "status_unchanged"
	CodePlanExpired      Code = "plan_expired"
	CodePlanNotOwned     Code = "plan_not_owned"
	CodeExecutionFailed  Code = "execution_failed"
)

// Clarification is the chat-visible form of a recoverable error.
type Clarification struct {
	Code    Code
	Message string
}

// Clarify maps a recoverable error onto a question for the agent. It returns
// false for errors that are not recoverable.
func Clarify(err error) (Clarification, bool) {
	var (
		extraction *ExtractionError
		ambiguous  *AmbiguousSubjectError
		notFound   *SubjectNotFoundError
		resolution *ResolutionError
		invalid    *InvalidStatusError
		unchanged  *StatusUnchangedError
	)
	switch {
	case errors.As(err, &extraction):
		return Clarification{Code: CodeMissingSlot, Message: missingSlotQuestion(extraction)}, true
	case errors.As(err, &ambiguous):
		return Clarification{
			Code:    CodeAmbiguousSubject,
			Message: fmt.Sprintf("I found more than one lead matching %q: %s. Which one did you mean?", ambiguous.Name, strings.Join(ambiguous.Candidates, ", ")),
		}, true
	case errors.As(err, &notFound):
		return Clarification{
			Code:    CodeSubjectNotFound,
			Message: fmt.Sprintf("I couldn't find a lead named %q. Could you check the name?", notFound.Name),
		}, true
	case errors.As(err, &resolution):
		return Clarification{
			Code:    CodeUnresolvedDate,
			Message: fmt.Sprintf("I couldn't work out a future date and time from %q. Try something like \"tomorrow at 2pm\" or \"Friday 10:30\".", resolution.Phrase),
		}, true
	case errors.As(err, &invalid):
		return Clarification{
			Code:    CodeInvalidStatus,
			Message: fmt.Sprintf("%q isn't a valid status. Valid statuses are: %s.", invalid.Value, statusList()),
		}, true
	case errors.As(err, &unchanged):
		return Clarification{
			Code:    CodeStatusUnchanged,
			Message: fmt.Sprintf("%s is already %s.", unchanged.LeadName, unchanged.Status.Label()),
		}, true
	case errors.Is(err, ErrPlanExpired):
		return Clarification{Code: CodePlanExpired, Message: "That request expired before it was confirmed. Please repeat the command."}, true
	case errors.Is(err, ErrPlanNotOwned):
		return Clarification{Code: CodePlanNotOwned, Message: "That pending request belongs to another agent."}, true
	}
	return Clarification{}, false
}

func missingSlotQuestion(e *ExtractionError) string {
	switch e.Missing {
	case SlotSubject:
		return "Which lead is this about?"
	case SlotStatus:
		return fmt.Sprintf("What status should I set? Valid statuses are: %s.", statusList())
	case SlotDateTime:
		return "When should the follow-up be? For example \"tomorrow at 2pm\"."
	case SlotNote:
		return "What should the note say?"
	case SlotInteractionType:
		return "Was this a call, meeting, viewing, email or note?"
	}
	return "Could you rephrase that with a bit more detail?"
}

func statusList() string {
	labels := make([]string, len(crm.LeadStatuses))
	for i, s := range crm.LeadStatuses {
		labels[i] = s.Label()
	}
	return strings.Join(labels, ", ")
}
