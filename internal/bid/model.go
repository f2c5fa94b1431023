package bid

import (
	"strings"
	"time"

	"github.com/bidhub/procurement/internal/apperr"
)

// Status is the bid lifecycle state. Any value may follow any other; only
// membership in the set is validated.
type Status string

const (
	StatusDraft           Status = "Draft"
	StatusInProcess       Status = "InProcess"
	StatusPendingApproval Status = "PendingApproval"
	StatusUnderReview     Status = "UnderReview"
	StatusReleased        Status = "Released"
	StatusOpened          Status = "Opened"
	StatusAwarded         Status = "Awarded"
	StatusCanceled        Status = "Canceled"
	StatusArchived        Status = "Archived"
)

// Statuses lists every valid status in declaration order.
var Statuses = []Status{
	StatusDraft, StatusInProcess, StatusPendingApproval, StatusUnderReview,
	StatusReleased, StatusOpened, StatusAwarded, StatusCanceled, StatusArchived,
}

// ActiveStatuses define what the dashboard counts as an active bid.
var ActiveStatuses = []Status{StatusInProcess, StatusOpened, StatusPendingApproval, StatusUnderReview}

// Valid reports whether s belongs to the status set.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsPublished reports whether the bid has been released to vendors.
func (s Status) IsPublished() bool {
	return s == StatusReleased || s == StatusOpened || s == StatusAwarded
}

func statusNames(list []Status) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}

const (
	errNameRequired = "name is required and cannot be empty"
	errStatusValue  = "status must be one of the allowed values"
	errCodeNull     = "code cannot be null"
)

// Bid is a procurement solicitation owned by a cooperative or a district.
type Bid struct {
	ID                     int64      `json:"id"`
	Code                   string     `json:"code"`
	Name                   string     `json:"name"`
	Note                   *string    `json:"note"`
	BidYear                *string    `json:"bidYear"`
	CategoryID             *int64     `json:"categoryId"`
	Status                 Status     `json:"status"`
	AwardType              *string    `json:"awardType"`
	StartDate              *time.Time `json:"startDate"`
	EndDate                *time.Time `json:"endDate"`
	AnticipatedOpeningDate *time.Time `json:"anticipatedOpeningDate"`
	AwardDate              *time.Time `json:"awardDate"`
	UserID                 *int64     `json:"userId"`
	Description            *string    `json:"description"`
	EstimatedValue         *float64   `json:"estimatedValue"`
	CooperativeID          *int64     `json:"cooperativeId"`
	DistrictID             *int64     `json:"districtId"`
	SchoolID               *int64     `json:"schoolId"`
	IsDeleted              bool       `json:"isDeleted"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// CreateInput carries the fields accepted on creation. An empty Status means Draft.
type CreateInput struct {
	Code                   *string    `json:"code"`
	Name                   string     `json:"name"`
	Note                   *string    `json:"note"`
	BidYear                *string    `json:"bidYear"`
	CategoryID             *int64     `json:"categoryId"`
	Status                 string     `json:"status"`
	AwardType              *string    `json:"awardType"`
	StartDate              *time.Time `json:"startDate"`
	EndDate                *time.Time `json:"endDate"`
	AnticipatedOpeningDate *time.Time `json:"anticipatedOpeningDate"`
	AwardDate              *time.Time `json:"awardDate"`
	UserID                 *int64     `json:"userId"`
	Description            *string    `json:"description"`
	EstimatedValue         *float64   `json:"estimatedValue"`
	CooperativeID          *int64     `json:"cooperativeId"`
	DistrictID             *int64     `json:"districtId"`
	SchoolID               *int64     `json:"schoolId"`
}

// UpdateInput is a partial update. Absent keys leave the field untouched;
// an explicit null clears a nullable field.
type UpdateInput struct {
	Code                   Optional[string]    `json:"code"`
	Name                   Optional[string]    `json:"name"`
	Note                   Optional[string]    `json:"note"`
	BidYear                Optional[string]    `json:"bidYear"`
	CategoryID             Optional[int64]     `json:"categoryId"`
	Status                 Optional[string]    `json:"status"`
	AwardType              Optional[string]    `json:"awardType"`
	StartDate              Optional[time.Time] `json:"startDate"`
	EndDate                Optional[time.Time] `json:"endDate"`
	AnticipatedOpeningDate Optional[time.Time] `json:"anticipatedOpeningDate"`
	AwardDate              Optional[time.Time] `json:"awardDate"`
	UserID                 Optional[int64]     `json:"userId"`
	Description            Optional[string]    `json:"description"`
	EstimatedValue         Optional[float64]   `json:"estimatedValue"`
	CooperativeID          Optional[int64]     `json:"cooperativeId"`
	DistrictID             Optional[int64]     `json:"districtId"`
	SchoolID               Optional[int64]     `json:"schoolId"`
}

// Organization returns the cooperative and district b would belong to after in.
func (in UpdateInput) Organization(b *Bid) (cooperativeID, districtID *int64) {
	return in.CooperativeID.Or(b.CooperativeID), in.DistrictID.Or(b.DistrictID)
}

// MovesOrganization reports whether in touches the owning organization.
func (in UpdateInput) MovesOrganization() bool {
	return in.CooperativeID.Set || in.DistrictID.Set
}

// ValidateName rejects empty and whitespace-only names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("name", errNameRequired)
	}
	return nil
}

// ParseStatus validates membership in the status set.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", apperr.Validation("status", errStatusValue, statusNames(Statuses)...)
	}
	return s, nil
}

// New validates the input and builds an unsaved bid. It performs no I/O.
func New(in CreateInput, now time.Time) (*Bid, error) {
	if err := ValidateName(in.Name); err != nil {
		return nil, err
	}
	status := StatusDraft
	if in.Status != "" {
		s, err := ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}

	b := &Bid{
		Name:                   in.Name,
		Note:                   in.Note,
		BidYear:                in.BidYear,
		CategoryID:             in.CategoryID,
		Status:                 status,
		AwardType:              in.AwardType,
		StartDate:              in.StartDate,
		EndDate:                in.EndDate,
		AnticipatedOpeningDate: in.AnticipatedOpeningDate,
		AwardDate:              in.AwardDate,
		UserID:                 in.UserID,
		Description:            in.Description,
		EstimatedValue:         in.EstimatedValue,
		CooperativeID:          in.CooperativeID,
		DistrictID:             in.DistrictID,
		SchoolID:               in.SchoolID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if in.Code != nil {
		b.Code = strings.TrimSpace(*in.Code)
	}
	return b, nil
}

// Apply validates the update and then overwrites the provided fields.
// UpdatedAt always moves to now, even when nothing else changed.
func (b *Bid) Apply(in UpdateInput, now time.Time) error {
	if in.Name.Set {
		if err := ValidateName(deref(in.Name.Value)); err != nil {
			return err
		}
	}
	var status *Status
	if in.Status.Set {
		s, err := ParseStatus(deref(in.Status.Value))
		if err != nil {
			return err
		}
		status = &s
	}
	if in.Code.Set && in.Code.Value == nil {
		return apperr.Validation("code", errCodeNull)
	}

	if in.Code.Set {
		b.Code = *in.Code.Value
	}
	if in.Name.Set {
		b.Name = *in.Name.Value
	}
	if status != nil {
		b.Status = *status
	}
	in.Note.apply(&b.Note)
	in.BidYear.apply(&b.BidYear)
	in.CategoryID.apply(&b.CategoryID)
	in.AwardType.apply(&b.AwardType)
	in.StartDate.apply(&b.StartDate)
	in.EndDate.apply(&b.EndDate)
	in.AnticipatedOpeningDate.apply(&b.AnticipatedOpeningDate)
	in.AwardDate.apply(&b.AwardDate)
	in.UserID.apply(&b.UserID)
	in.Description.apply(&b.Description)
	in.EstimatedValue.apply(&b.EstimatedValue)
	in.CooperativeID.apply(&b.CooperativeID)
	in.DistrictID.apply(&b.DistrictID)
	in.SchoolID.apply(&b.SchoolID)

	b.UpdatedAt = now
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
