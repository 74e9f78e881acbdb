package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	for _, status := range OrderStatuses() {
		parsed, err := ParseOrderStatus(string(status))
		if err != nil || parsed != status {
			t.Fatalf("round trip failed for %s: %v", status, err)
		}
	}
	if _, err := ParseOrderStatus("paid"); err == nil {
		t.Fatalf("paid is not an order status")
	}
}

func TestReportActionOutcome(t *testing.T) {
	if got, ok := ReportActionApprove.Outcome(); !ok || got != ReportStatusResolved {
		t.Fatalf("approve should resolve, got %s", got)
	}
	if got, ok := ReportActionReject.Outcome(); !ok || got != ReportStatusRejected {
		t.Fatalf("reject should reject, got %s", got)
	}
	if _, ok := ReportAction("escalate").Outcome(); ok {
		t.Fatalf("unknown action must not map to an outcome")
	}
	if _, err := ParseReportAction("escalate"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseUserRoleNormalizes(t *testing.T) {
	role, err := ParseUserRole(" Admin ")
	if err != nil || role != UserRoleAdmin {
		t.Fatalf("expected admin, got %q (%v)", role, err)
	}
	if _, err := ParseUserRole("owner"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestOfferStatusTerminal(t *testing.T) {
	if OfferStatusPending.IsTerminal() {
		t.Fatalf("pending is not terminal")
	}
	if !OfferStatusAccepted.IsTerminal() || !OfferStatusRejected.IsTerminal() {
		t.Fatalf("accepted and rejected are terminal")
	}
}
