package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"terratrack_notifier/internal/domain/channel"
	"terratrack_notifier/internal/domain/planting"
	"terratrack_notifier/internal/domain/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewPlanting carries the user-editable fields of a planting.
type NewPlanting struct {
	CropName     string
	PlantingDate time.Time
	BatchID      string
	Notes        string
}

// PlantingView is a planting with its regenerated plan and lifecycle bucket.
type PlantingView struct {
	Planting    *planting.Planting
	HarvestDate *time.Time // nil when the crop is unknown
	DaysLeft    *int
	Category    planting.Category
}

// Overview groups a user's plantings by category, in repository order.
type Overview struct {
	Past     []PlantingView
	Upcoming []PlantingView
	Ongoing  []PlantingView
}

type PlantingService struct {
	plantingRepo   planting.Repository
	userRepo       user.Repository
	calc           *PlanCalculator
	subscriber     channel.Subscriber // nil when the channel manages no subscriptions
	channelTarget  string
	persistRefresh bool
	logger         *logrus.Entry
	now            func() time.Time
}

func NewPlantingService(
	pr planting.Repository,
	ur user.Repository,
	calc *PlanCalculator,
	subscriber channel.Subscriber,
	channelTarget string,
	persistRegeneratedPlans bool,
	logger *logrus.Entry,
) *PlantingService {
	return &PlantingService{
		plantingRepo:   pr,
		userRepo:       ur,
		calc:           calc,
		subscriber:     subscriber,
		channelTarget:  channelTarget,
		persistRefresh: persistRegeneratedPlans,
		logger:         logger,
		now:            time.Now,
	}
}

// AddPlanting computes the care plan and stores a new planting for ownerID.
func (s *PlantingService) AddPlanting(ctx context.Context, ownerID string, in NewPlanting) (*planting.Planting, error) {
	p, err := s.build(ownerID, in)
	if err != nil {
		return nil, err
	}
	p.ID = uuid.NewString()

	if err := s.plantingRepo.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: save planting: %w", ErrRepositoryUnavailable, err)
	}
	s.logger.WithFields(logrus.Fields{
		"user_id":     ownerID,
		"planting_id": p.ID,
		"crop_name":   p.CropName,
		"plan_steps":  len(p.Plan),
	}).Info("Planting created")
	return p, nil
}

// ReplacePlanting overwrites an existing planting with new values and a fresh plan.
// The planting keeps its ID and creation time.
func (s *PlantingService) ReplacePlanting(ctx context.Context, ownerID, plantingID string, in NewPlanting) (*planting.Planting, error) {
	existing, err := s.owned(ctx, ownerID, plantingID)
	if err != nil {
		return nil, err
	}

	p, err := s.build(ownerID, in)
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	if strings.TrimSpace(in.BatchID) == "" {
		p.BatchID = existing.BatchID
	}

	if err := s.plantingRepo.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: replace planting: %w", ErrRepositoryUnavailable, err)
	}
	s.logger.WithFields(logrus.Fields{
		"user_id":     ownerID,
		"planting_id": p.ID,
		"crop_name":   p.CropName,
	}).Info("Planting replaced")
	return p, nil
}

func (s *PlantingService) DeletePlanting(ctx context.Context, ownerID, plantingID string) error {
	if _, err := s.owned(ctx, ownerID, plantingID); err != nil {
		return err
	}
	if err := s.plantingRepo.Delete(ctx, plantingID); err != nil {
		return fmt.Errorf("%w: delete planting: %w", ErrRepositoryUnavailable, err)
	}
	s.logger.WithFields(logrus.Fields{
		"user_id":     ownerID,
		"planting_id": plantingID,
	}).Info("Planting deleted")
	return nil
}

// Overview regenerates every plan and sorts the owner's plantings into categories
// relative to today. Stored plans are never trusted; when write-back is enabled a
// stale stored plan is replaced.
func (s *PlantingService) Overview(ctx context.Context, ownerID string, today time.Time) (*Overview, error) {
	plantings, err := s.plantingRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list plantings: %w", ErrRepositoryUnavailable, err)
	}

	ov := &Overview{}
	for _, p := range plantings {
		plan, err := s.calc.ComputePlan(p.PlantingDate, p.CropName)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"planting_id": p.ID,
				"crop_name":   p.CropName,
			}).WithError(err).Warn("Cannot regenerate plan, listing planting as ongoing")
			p.Plan = nil
			ov.Ongoing = append(ov.Ongoing, PlantingView{Planting: p, Category: planting.CategoryOngoing})
			continue
		}

		if s.persistRefresh && !samePlan(p.Plan, plan) {
			p.Plan = plan
			if err := s.plantingRepo.Put(ctx, p); err != nil {
				s.logger.WithField("planting_id", p.ID).WithError(err).Warn("Failed to write back regenerated plan")
			}
		}
		p.Plan = plan

		harvest, _ := HarvestDate(plan)
		days := DaysUntil(harvest, today)
		view := PlantingView{Planting: p, HarvestDate: &harvest, DaysLeft: &days, Category: Categorize(harvest, today)}
		switch view.Category {
		case planting.CategoryPast:
			ov.Past = append(ov.Past, view)
		case planting.CategoryUpcoming:
			ov.Upcoming = append(ov.Upcoming, view)
		default:
			ov.Ongoing = append(ov.Ongoing, view)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  ownerID,
		"past":     len(ov.Past),
		"upcoming": len(ov.Upcoming),
		"ongoing":  len(ov.Ongoing),
	}).Debug("Plantings categorized")
	return ov, nil
}

// SetNotifications stores the user's preference. When notifications are switched on
// and the channel manages subscriptions, the user's address is subscribed too.
func (s *PlantingService) SetNotifications(ctx context.Context, userID string, enabled bool) error {
	if err := s.userRepo.SetNotificationsEnabled(ctx, userID, enabled); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: update notification preference: %w", ErrRepositoryUnavailable, err)
	}
	userLogger := s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"enabled": enabled,
	})
	userLogger.Info("Notification preference updated")

	if !enabled || s.subscriber == nil {
		return nil
	}
	profile, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		userLogger.WithError(err).Warn("Could not load profile for subscription")
		return nil
	}
	if profile.ContactAddress == "" {
		return nil
	}
	subID, err := s.subscriber.Subscribe(ctx, s.channelTarget, profile.ContactAddress)
	if err != nil {
		userLogger.WithError(err).Warn("Failed to subscribe contact address to channel")
		return nil
	}
	userLogger.WithField("subscription_id", subID).Info("Contact address subscribed to channel")
	return nil
}

func (s *PlantingService) build(ownerID string, in NewPlanting) (*planting.Planting, error) {
	if strings.TrimSpace(in.CropName) == "" || in.PlantingDate.IsZero() {
		return nil, ErrInvalidPlanting
	}
	date := CalendarDate(in.PlantingDate)
	plan, err := s.calc.ComputePlan(date, in.CropName)
	if err != nil {
		return nil, err
	}
	batchID := strings.TrimSpace(in.BatchID)
	if batchID == "" {
		batchID = "batch-" + s.now().Format("20060102")
	}
	return &planting.Planting{
		OwnerID:      ownerID,
		CropName:     in.CropName,
		PlantingDate: date,
		BatchID:      batchID,
		Notes:        in.Notes,
		Plan:         plan,
	}, nil
}

func (s *PlantingService) owned(ctx context.Context, ownerID, plantingID string) (*planting.Planting, error) {
	p, err := s.plantingRepo.Get(ctx, plantingID)
	if err != nil {
		if errors.Is(err, planting.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get planting: %w", ErrRepositoryUnavailable, err)
	}
	if p.OwnerID != ownerID {
		return nil, ErrNotPlantingOwner
	}
	return p, nil
}
