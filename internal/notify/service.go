package notify

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// DigestItem is one follow-up suggestion waiting for the agent's confirmation.
type DigestItem struct {
	SessionID   string
	LeadName    string
	Summary     string
	ScheduledAt time.Time
}

// Digest is the per-agent summary of a nurture scan.
type Digest struct {
	AgentName  string
	AgentEmail string
	Timezone   string
	Items      []DigestItem
}

// Service sends notifications to agents.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

// NewService creates a notification service. A nil sender disables email.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, logger: logger}
}

// NotifyNurtureDigest emails the agent the follow-ups suggested for their stale
// leads. Agents without an email address are skipped.
func (s *Service) NotifyNurtureDigest(ctx context.Context, d Digest) error {
	if s.email == nil {
		s.logger.Debug("notify: email not configured, skipping digest")
		return nil
	}
	if len(d.Items) == 0 {
		return nil
	}
	if strings.TrimSpace(d.AgentEmail) == "" {
		s.logger.Debug("notify: agent has no email, skipping digest", "agent_name", d.AgentName)
		return nil
	}

	msg := EmailMessage{
		To:      d.AgentEmail,
		ToName:  d.AgentName,
		Subject: digestSubject(len(d.Items)),
		Body:    digestText(d),
		HTML:    digestHTML(d),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send nurture digest: %w", err)
	}
	s.logger.Info("nurture digest sent", "to", d.AgentEmail, "suggestions", len(d.Items))
	return nil
}

func digestSubject(n int) string {
	if n == 1 {
		return "1 lead could use a check-in"
	}
	return fmt.Sprintf("%d leads could use a check-in", n)
}

func greeting(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", name)
}

func digestLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

const (
	suggestionsPath = "/v1/chat/suggestions"
	digestIntro     = "These leads haven't heard from you in a while. I've drafted a follow-up for each one; confirm or decline each in its chat session. All of them are listed at " + suggestionsPath + "."
)

// ConfirmPath is the chat endpoint that resolves the plan in sessionID.
func ConfirmPath(sessionID string) string {
	return "/v1/chat/sessions/" + url.PathEscape(sessionID) + "/confirm"
}

func digestText(d Digest) string {
	loc := digestLocation(d.Timezone)
	var b strings.Builder
	b.WriteString(greeting(d.AgentName))
	b.WriteString("\n\n" + digestIntro + "\n\n")
	for _, item := range d.Items {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", item.LeadName, item.Summary, item.ScheduledAt.In(loc).Format("Mon Jan 2 3:04 PM"))
		if item.SessionID != "" {
			fmt.Fprintf(&b, "  session %s, confirm with POST %s\n", item.SessionID, ConfirmPath(item.SessionID))
		}
	}
	return b.String()
}

func digestHTML(d Digest) string {
	loc := digestLocation(d.Timezone)
	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(greeting(d.AgentName)))
	fmt.Fprintf(&b, "<p>%s</p><ul>", html.EscapeString(digestIntro))
	for _, item := range d.Items {
		fmt.Fprintf(&b, "<li><strong>%s</strong>: %s <em>(%s)</em>",
			html.EscapeString(item.LeadName),
			html.EscapeString(item.Summary),
			item.ScheduledAt.In(loc).Format("Mon Jan 2 3:04 PM"),
		)
		if item.SessionID != "" {
			fmt.Fprintf(&b, "<br>session <code>%s</code>, confirm with <code>POST %s</code>",
				html.EscapeString(item.SessionID),
				html.EscapeString(ConfirmPath(item.SessionID)),
			)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}
