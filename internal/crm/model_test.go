package crm

import "testing"

func TestParseLeadStatus(t *testing.T) {
	cases := map[string]LeadStatus{
		"Negotiating":       StatusNegotiating,
		"closed-won":        StatusClosedWon,
		"closed_lost":       StatusClosedLost,
		"Follow up":         StatusFollowUp,
		"qualified status":  StatusQualified,
		"negotiation stage": StatusNegotiating,
		"  CONTACTED! ":     StatusContacted,
	}
	for raw, want := range cases {
		got, ok := ParseLeadStatus(raw)
		if !ok {
			t.Fatalf("ParseLeadStatus(%q) not recognized", raw)
		}
		if got != want {
			t.Fatalf("ParseLeadStatus(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, ok := ParseLeadStatus("pending approval"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestLeadStatusValidAndLabel(t *testing.T) {
	for _, s := range LeadStatuses {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if LeadStatus("archived").Valid() {
		t.Fatal("unexpected valid status")
	}
	if got := StatusClosedWon.Label(); got != "closed won" {
		t.Fatalf("label = %q", got)
	}
}

func TestInteractionTypeValid(t *testing.T) {
	if !InteractionViewing.Valid() {
		t.Fatal("viewing should be valid")
	}
	if InteractionType("text").Valid() {
		t.Fatal("text should be invalid")
	}
}

func TestScopeValidate(t *testing.T) {
	if err := (Scope{}).Validate(); err != ErrUnscopedQuery {
		t.Fatalf("zero scope: got %v", err)
	}
	if err := AgentScope("  ").Validate(); err != ErrUnscopedQuery {
		t.Fatalf("blank agent: got %v", err)
	}
	if err := AdminScope("").Validate(); err == nil {
		t.Fatal("admin scope without actor should be rejected")
	}
	if err := SystemScope("nurture").Validate(); err != nil {
		t.Fatalf("system scope: %v", err)
	}

	s := AgentScope("agent-1")
	if !s.Permits("agent-1") || s.Permits("agent-2") {
		t.Fatal("agent scope must only permit its own rows")
	}
	if !SystemScope("nurture").Permits("agent-2") {
		t.Fatal("system scope should permit every owner")
	}
	if got := SystemScope("nurture").ActorID(); got != "system:nurture" {
		t.Fatalf("actor = %q", got)
	}
}
