package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func sampleDigest() Digest {
	return Digest{
		AgentName:  "Ana",
		AgentEmail: "ana@example.com",
		Timezone:   "America/New_York",
		Items: []DigestItem{
			{SessionID: "nurture:agent-a:lead-1", LeadName: "John Doe", Summary: "Check in: no contact since Dec 1", ScheduledAt: time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC)},
			{LeadName: "Sarah <Smith>", Summary: "Check in: never contacted", ScheduledAt: time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC)},
		},
	}
}

func TestNotifyNurtureDigest(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, nil)

	if err := svc.NotifyNurtureDigest(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "ana@example.com" || msg.ToName != "Ana" {
		t.Errorf("unexpected recipient: %s <%s>", msg.ToName, msg.To)
	}
	if msg.Subject != "2 leads could use a check-in" {
		t.Errorf("unexpected subject: %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "- John Doe: Check in: no contact since Dec 1 (Tue Jan 16 10:00 AM)") {
		t.Errorf("body missing local-time line:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "  session nurture:agent-a:lead-1, confirm with POST /v1/chat/sessions/nurture:agent-a:lead-1/confirm\n") {
		t.Errorf("body missing confirm path:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "/v1/chat/suggestions") {
		t.Errorf("body missing suggestions path:\n%s", msg.Body)
	}
	if strings.Count(msg.HTML, "<code>POST ") != 1 {
		t.Errorf("expected one confirm path in html:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "Sarah &lt;Smith&gt;") {
		t.Errorf("html not escaped:\n%s", msg.HTML)
	}
}

func TestNotifyNurtureDigestSkips(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, nil)

	noEmail := sampleDigest()
	noEmail.AgentEmail = ""
	if err := svc.NotifyNurtureDigest(context.Background(), noEmail); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	empty := sampleDigest()
	empty.Items = nil
	if err := svc.NotifyNurtureDigest(context.Background(), empty); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no emails, got %d", len(sender.sent))
	}

	if err := NewService(nil, nil).NotifyNurtureDigest(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("nil sender should be a no-op, got %v", err)
	}
}

func TestNotifyNurtureDigestSendFailure(t *testing.T) {
	svc := NewService(&recordingSender{err: errors.New("smtp down")}, nil)
	err := svc.NotifyNurtureDigest(context.Background(), sampleDigest())
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestDigestSubjectSingular(t *testing.T) {
	if got := digestSubject(1); got != "1 lead could use a check-in" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestConfirmPathEscapesSession(t *testing.T) {
	if got := ConfirmPath("nurture:agent-a:lead-1"); got != "/v1/chat/sessions/nurture:agent-a:lead-1/confirm" {
		t.Errorf("unexpected path %q", got)
	}
	if got := ConfirmPath("a/b c"); got != "/v1/chat/sessions/a%2Fb%20c/confirm" {
		t.Errorf("unexpected path %q", got)
	}
}
