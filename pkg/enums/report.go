package enums

import "fmt"

// ReportStatus moves pending -> resolved | rejected exactly once.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusResolved ReportStatus = "resolved"
	ReportStatusRejected ReportStatus = "rejected"
)

var validReportStatuses = []ReportStatus{
	ReportStatusPending,
	ReportStatusResolved,
	ReportStatusRejected,
}

func (s ReportStatus) String() string {
	return string(s)
}

func (s ReportStatus) IsValid() bool {
	for _, candidate := range validReportStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseReportStatus(value string) (ReportStatus, error) {
	for _, candidate := range validReportStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report status %q", value)
}

// ReportAction is the admin decision on a pending report.
type ReportAction string

const (
	ReportActionApprove ReportAction = "approve"
	ReportActionReject  ReportAction = "reject"
)

// Outcome maps the decision to the report's terminal status.
func (a ReportAction) Outcome() (ReportStatus, bool) {
	switch a {
	case ReportActionApprove:
		return ReportStatusResolved, true
	case ReportActionReject:
		return ReportStatusRejected, true
	default:
		return "", false
	}
}

func ParseReportAction(value string) (ReportAction, error) {
	switch ReportAction(value) {
	case ReportActionApprove, ReportActionReject:
		return ReportAction(value), nil
	}
	return "", fmt.Errorf("invalid report action %q", value)
}
