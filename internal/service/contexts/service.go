package contexts

import (
	"context"
	"fmt"
	"time"

	mqcontracts "habitloop/contracts/mq"
	"habitloop/internal/events"
	"habitloop/internal/model"
	"habitloop/pkg/mq"

	"go.uber.org/zap"
)

// Store is the context-memory persistence surface.
type Store interface {
	Insert(ctx context.Context, c *model.ContextMemory) (int64, error)
	GetByID(ctx context.Context, contextID int64, ownerID string) (*model.ContextMemory, error)
	ListUnresolved(ctx context.Context, ownerID string) ([]model.ContextMemory, error)
	UpdateLastChecked(ctx context.Context, contextID int64, ownerID string, at time.Time) (bool, error)
	Resolve(ctx context.Context, contextID int64, ownerID string, resolvedDate time.Time) (bool, error)
	ListForHabit(ctx context.Context, habitID int64, ownerID string) ([]model.ContextMemory, error)
}

type CreateInput struct {
	ContextType          string
	Description          string
	StartDate            *time.Time
	ExpectedEndDate      *time.Time
	CheckInFrequencyDays *int
	RelatedHabits        []int64
}

type Service struct {
	store  Store
	events events.Sink
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, sink events.Sink, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		events: sink,
		logger: logger,
		now:    time.Now,
	}
}

func validContextType(t string) bool {
	switch t {
	case model.ContextSick, model.ContextInjury, model.ContextExamPeriod, model.ContextTravel:
		return true
	}
	return false
}

// defaultCadence is the check-in cadence applied when the caller omits
// one. Health contexts get a daily nudge; exams and travel are left to
// their expected end date.
func defaultCadence(contextType string) *int {
	switch contextType {
	case model.ContextSick, model.ContextInjury:
		one := 1
		return &one
	}
	return nil
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.ContextMemory, error) {
	if !validContextType(in.ContextType) {
		return nil, fmt.Errorf("%w: unknown context_type %q", model.ErrValidation, in.ContextType)
	}

	start := model.DateOf(s.now())
	if in.StartDate != nil {
		start = model.DateOf(*in.StartDate)
	}
	if in.ExpectedEndDate != nil && model.DateOf(*in.ExpectedEndDate).Before(start) {
		return nil, fmt.Errorf("%w: expected_end_date precedes start_date", model.ErrValidation)
	}

	cadence := in.CheckInFrequencyDays
	if cadence == nil {
		cadence = defaultCadence(in.ContextType)
	} else if *cadence < 1 {
		return nil, fmt.Errorf("%w: check_in_frequency_days must be at least 1", model.ErrValidation)
	}

	cm := &model.ContextMemory{
		OwnerID:              ownerID,
		ContextType:          in.ContextType,
		Description:          in.Description,
		StartDate:            start,
		ExpectedEndDate:      in.ExpectedEndDate,
		CheckInFrequencyDays: cadence,
		RelatedHabits:        in.RelatedHabits,
	}
	if cm.RelatedHabits == nil {
		cm.RelatedHabits = []int64{}
	}

	if _, err := s.store.Insert(ctx, cm); err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	s.logger.Info("Context created",
		zap.Int64("context_id", cm.ID),
		zap.String("owner_id", ownerID),
		zap.String("context_type", cm.ContextType),
		zap.Int64s("related_habits", cm.RelatedHabits),
	)

	if err := s.events.Emit(ctx, "context", cm.ID, mq.ContextCreated, mqcontracts.ContextCreatedPayload{
		ContextID:     cm.ID,
		OwnerID:       ownerID,
		ContextType:   cm.ContextType,
		RelatedHabits: cm.RelatedHabits,
	}); err != nil {
		s.logger.Warn("Failed to emit context.created event", zap.Error(err))
	}

	return cm, nil
}

func (s *Service) Get(ctx context.Context, contextID int64, ownerID string) (*model.ContextMemory, error) {
	return s.store.GetByID(ctx, contextID, ownerID)
}

// Active returns unresolved contexts, auto-resolving any whose expected
// end date has already passed.
func (s *Service) Active(ctx context.Context, ownerID string) ([]model.ContextMemory, error) {
	unresolved, err := s.store.ListUnresolved(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	today := model.DateOf(s.now())
	active := unresolved[:0]
	for i := range unresolved {
		c := unresolved[i]
		if c.ExpectedEndDate != nil && model.DateOf(*c.ExpectedEndDate).Before(today) {
			if _, err := s.resolve(ctx, &c, today); err != nil {
				s.logger.Warn("Failed to auto-resolve expired context",
					zap.Int64("context_id", c.ID),
					zap.Error(err),
				)
			}
			continue
		}
		active = append(active, c)
	}
	return active, nil
}

// NeedingCheckin returns active contexts whose check-in cadence is due:
// never checked, or last checked at least cadence days ago.
func (s *Service) NeedingCheckin(ctx context.Context, ownerID string) ([]model.ContextMemory, error) {
	active, err := s.Active(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var due []model.ContextMemory
	for _, c := range active {
		if c.CheckInFrequencyDays == nil {
			continue
		}
		if c.LastCheckedAt == nil {
			due = append(due, c)
			continue
		}
		if now.Sub(*c.LastCheckedAt) >= time.Duration(*c.CheckInFrequencyDays)*24*time.Hour {
			due = append(due, c)
		}
	}
	return due, nil
}

func (s *Service) MarkChecked(ctx context.Context, contextID int64, ownerID string) (bool, error) {
	return s.store.UpdateLastChecked(ctx, contextID, ownerID, s.now())
}

// Resolve closes a context as of today.
func (s *Service) Resolve(ctx context.Context, contextID int64, ownerID string) (bool, error) {
	c, err := s.store.GetByID(ctx, contextID, ownerID)
	if err != nil {
		return false, err
	}
	if c.Resolved {
		return false, nil
	}
	return s.resolve(ctx, c, model.DateOf(s.now()))
}

func (s *Service) resolve(ctx context.Context, c *model.ContextMemory, resolvedDate time.Time) (bool, error) {
	ok, err := s.store.Resolve(ctx, c.ID, c.OwnerID, resolvedDate)
	if err != nil || !ok {
		return ok, err
	}

	if err := s.events.Emit(ctx, "context", c.ID, mq.ContextResolved, mqcontracts.ContextResolvedPayload{
		ContextID: c.ID,
		OwnerID:   c.OwnerID,
	}); err != nil {
		s.logger.Warn("Failed to emit context.resolved event", zap.Error(err))
	}
	return true, nil
}

// ForHabit returns every context linked to the habit, resolved included.
func (s *Service) ForHabit(ctx context.Context, habitID int64, ownerID string) ([]model.ContextMemory, error) {
	return s.store.ListForHabit(ctx, habitID, ownerID)
}

// WithClock overrides the service clock; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
