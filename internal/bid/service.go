package bid

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bidhub/procurement/internal/apperr"
	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/events"
)

const entityName = "Bid"

// BidRepository is the persistence contract the service consumes.
type BidRepository interface {
	Create(context.Context, *Bid) (*Bid, error)
	FindByID(context.Context, int64) (*Bid, error)
	FindAll(context.Context) ([]Bid, error)
	FindByScope(context.Context, ScopeFilter) ([]Bid, error)
	FindByBidManager(context.Context, int64) ([]Bid, error)
	FindByDistrictID(context.Context, int64) ([]Bid, error)
	FindByCooperativeID(context.Context, int64) ([]Bid, error)
	FindPaginated(context.Context, PageParams) ([]Bid, int, error)
	Update(context.Context, *Bid) (*Bid, error)
	SoftDelete(context.Context, int64) error
}

// Service holds the bid rules: validation before I/O, partial updates and
// soft deletion.
type Service struct {
	repo    BidRepository
	now     func() time.Time
	newCode func() string
	events  events.Publisher
	logger  zerolog.Logger
}

// NewService creates the bid service.
func NewService(repo BidRepository) *Service {
	return &Service{
		repo:    repo,
		now:     func() time.Time { return time.Now().UTC() },
		newCode: generateCode,
		events:  events.Noop{},
		logger:  log.With().Str("component", "bid").Logger(),
	}
}

// WithPublisher sets where lifecycle events go.
func (s *Service) WithPublisher(p events.Publisher) *Service {
	s.events = p
	return s
}

func generateCode() string {
	return "BID-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// CreateBid validates and stores a new bid. Validation failures never reach the repository.
func (s *Service) CreateBid(ctx context.Context, in CreateInput) (*Bid, error) {
	b, err := New(in, s.now())
	if err != nil {
		return nil, err
	}
	if b.Code == "" {
		b.Code = s.newCode()
	}

	created, err := s.repo.Create(ctx, b)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("bid_id", created.ID).Str("code", created.Code).Msg("bid created")
	s.publish(ctx, events.BidCreated, created)
	return created, nil
}

// GetBidByID returns a live bid; soft-deleted rows read as not found.
func (s *Service) GetBidByID(ctx context.Context, id int64) (*Bid, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil || b.IsDeleted {
		return nil, apperr.NotFound(entityName)
	}
	return b, nil
}

// GetBidDetailsByID returns the bid with derived approvals and release date.
func (s *Service) GetBidDetailsByID(ctx context.Context, id int64) (*Details, error) {
	b, err := s.GetBidByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewDetails(b), nil
}

// UpdateBid fetches, applies the partial update and persists. The fetch and
// the write are not atomic.
func (s *Service) UpdateBid(ctx context.Context, id int64, in UpdateInput) (*Bid, error) {
	b, err := s.GetBidByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Apply(in, s.now()); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, b)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.BidUpdated, updated)
	return updated, nil
}

// DeleteBid soft-deletes after confirming the bid exists.
func (s *Service) DeleteBid(ctx context.Context, id int64) error {
	b, err := s.GetBidByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("bid_id", id).Msg("bid soft-deleted")
	s.publish(ctx, events.BidDeleted, b)
	return nil
}

func (s *Service) publish(ctx context.Context, t events.Type, b *Bid) {
	err := s.events.Publish(ctx, events.Event{
		Type:          t,
		BidID:         b.ID,
		Code:          b.Code,
		Status:        string(b.Status),
		CooperativeID: b.CooperativeID,
		DistrictID:    b.DistrictID,
		OccurredAt:    s.now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", string(t)).Int64("bid_id", b.ID).Msg("bid event not published")
	}
}

// FindByScope lists bids for an organization, optionally narrowed to a school.
func (s *Service) FindByScope(ctx context.Context, f ScopeFilter) ([]Bid, error) {
	return s.repo.FindByScope(ctx, f)
}

// FindByOrganization applies a resolved organization filter. An empty filter
// lists everything.
func (s *Service) FindByOrganization(ctx context.Context, f authz.OrganizationFilter) ([]Bid, error) {
	if f.IsEmpty() {
		return s.repo.FindAll(ctx)
	}
	return s.repo.FindByScope(ctx, ScopeFilter{CooperativeID: f.CooperativeID, DistrictID: f.DistrictID})
}

// FindByBidManager lists bids owned or managed by the user.
func (s *Service) FindByBidManager(ctx context.Context, userID int64) ([]Bid, error) {
	return s.repo.FindByBidManager(ctx, userID)
}

// FindByDistrictID lists bids owned by a district.
func (s *Service) FindByDistrictID(ctx context.Context, districtID int64) ([]Bid, error) {
	return s.repo.FindByDistrictID(ctx, districtID)
}

// FindByCooperativeID lists bids owned by a cooperative.
func (s *Service) FindByCooperativeID(ctx context.Context, cooperativeID int64) ([]Bid, error) {
	return s.repo.FindByCooperativeID(ctx, cooperativeID)
}

// FindPaginated runs the search and wraps the result with page totals.
func (s *Service) FindPaginated(ctx context.Context, p PageParams) (*Page, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	bids, total, err := s.repo.FindPaginated(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Page{
		Bids:       bids,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: (total + p.Limit - 1) / p.Limit,
	}, nil
}
