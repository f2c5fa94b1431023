package bid

import (
	"strconv"
	"time"
)

const (
	approvalApproved   = "Approved"
	approvalPending    = "Pending Approval"
	approvalNotStarted = "Not Started"
)

// Approvals reports per-aspect approval state. Every aspect currently
// resolves from the bid status alone.
type Approvals struct {
	TermsAndConditions     string `json:"termsAndConditions"`
	RequiredForms          string `json:"requiredForms"`
	BidItems               string `json:"bidItems"`
	ParticipatingDistricts string `json:"participatingDistricts"`
}

// Details is the bid read model returned by the details endpoint.
type Details struct {
	Bid
	ReleaseDate  *time.Time `json:"releaseDate"`
	BidManagerID *string    `json:"bidManagerId"`
	Approvals    Approvals  `json:"approvals"`
}

func approvalState(s Status) string {
	switch {
	case s == StatusAwarded:
		return approvalApproved
	case s.IsPublished():
		return approvalPending
	default:
		return approvalNotStarted
	}
}

// releaseDate is only known once the bid is published: start date, then
// anticipated opening, then creation time.
func releaseDate(b *Bid) *time.Time {
	if !b.Status.IsPublished() {
		return nil
	}
	switch {
	case b.StartDate != nil:
		return b.StartDate
	case b.AnticipatedOpeningDate != nil:
		return b.AnticipatedOpeningDate
	default:
		created := b.CreatedAt
		return &created
	}
}

// NewDetails derives the read model from a persisted bid.
func NewDetails(b *Bid) *Details {
	state := approvalState(b.Status)
	d := &Details{
		Bid:         *b,
		ReleaseDate: releaseDate(b),
		Approvals: Approvals{
			TermsAndConditions:     state,
			RequiredForms:          state,
			BidItems:               state,
			ParticipatingDistricts: state,
		},
	}
	if b.UserID != nil {
		manager := strconv.FormatInt(*b.UserID, 10)
		d.BidManagerID = &manager
	}
	return d
}
