package service

import (
	"context"
	"time"

	"subguard-be/internal/dto"
	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/logger"
	"subguard-be/internal/repository/specification"
	"subguard-be/internal/repository/unitofwork"
	"subguard-be/pkg/detection"
	"subguard-be/pkg/events"
	pktNats "subguard-be/pkg/nats"

	"github.com/google/uuid"
)

type IDetectionService interface {
	RunDetection(ctx context.Context, userId uuid.UUID, req *dto.RunDetectionRequest) (*dto.RunDetectionResponse, error)
	ListSubscriptions(ctx context.Context, userId uuid.UUID) ([]*dto.SubscriptionListItem, error)
}

type detectionService struct {
	uowFactory     unitofwork.RepositoryFactory
	matcher        *detection.PatternMatcher
	synthesizer    *detection.Synthesizer
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func NewDetectionService(
	uowFactory unitofwork.RepositoryFactory,
	matcher *detection.PatternMatcher,
	synthesizer *detection.Synthesizer,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IDetectionService {
	return &detectionService{
		uowFactory:     uowFactory,
		matcher:        matcher,
		synthesizer:    synthesizer,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

// RunDetection scans the owner's transaction history for recurring charges
// and upserts the matching subscriptions. The full result set is returned so
// the client can show non-recurring candidates too.
func (s *detectionService) RunDetection(ctx context.Context, userId uuid.UUID, req *dto.RunDetectionRequest) (*dto.RunDetectionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	txSpecs := []specification.Specification{
		specification.OwnedBy{UserID: userId},
		specification.OrderBy{Field: "date"},
	}
	if req.AccountId != nil {
		txSpecs = append(txSpecs, specification.Filter("account_id", *req.AccountId))
	}
	transactions, err := uow.TransactionRepository().FindAll(ctx, txSpecs...)
	if err != nil {
		return nil, err
	}

	results := s.matcher.Detect(transactions)

	existing, err := uow.SubscriptionRepository().FindAll(ctx, specification.OwnedBy{UserID: userId})
	if err != nil {
		return nil, err
	}

	changes := s.synthesizer.Plan(userId, results, existing)
	if req.ForceRedetect {
		changes = append(changes, s.forcedRefreshes(results, existing, changes)...)
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	for _, change := range changes {
		switch change.Kind {
		case detection.ChangeCreate:
			err = uow.SubscriptionRepository().Create(ctx, change.Subscription)
		case detection.ChangeUpdate:
			err = uow.SubscriptionRepository().Update(ctx, change.Subscription)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("DetectionService", "Detection pass finished", map[string]interface{}{
		"user_id":      userId,
		"transactions": len(transactions),
		"results":      len(results),
		"changes":      len(changes),
	})

	// Notifications are auxiliary; a bus outage never fails the pass.
	if s.eventPublisher != nil {
		for _, change := range changes {
			sub := change.Subscription
			evt := events.NewSubscriptionDetected(userId, sub.Id, sub.ProviderName, sub.Confidence, change.Kind == detection.ChangeCreate)
			if err := s.eventPublisher.Publish(ctx, evt); err != nil {
				s.logger.Warn("DetectionService", "Failed to publish detection event", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	return buildDetectionResponse(results, changes), nil
}

// forcedRefreshes re-applies detection results to already-known detected
// subscriptions even when nothing material changed, so billing dates and
// confidence stay fresh after a forced pass. Manual records are untouched.
func (s *detectionService) forcedRefreshes(results []*detection.Result, existing []*entity.Subscription, planned []detection.Change) []detection.Change {
	plannedIds := make(map[uuid.UUID]bool, len(planned))
	for _, c := range planned {
		plannedIds[c.Subscription.Id] = true
	}

	type fingerprint struct {
		normalized string
		bucket     int
	}
	byFingerprint := make(map[fingerprint]*entity.Subscription, len(existing))
	for _, sub := range existing {
		byFingerprint[fingerprint{sub.NormalizedName, sub.AmountBucket}] = sub
	}

	var refreshes []detection.Change
	now := time.Now()
	for _, r := range results {
		if !r.IsSubscription {
			continue
		}
		sub, ok := byFingerprint[fingerprint{r.NormalizedName, r.AmountBucket}]
		if !ok || sub.IsManual || plannedIds[sub.Id] {
			continue
		}
		lastBilling := r.LastDate
		nextBilling := r.NextDate
		sub.Amount = r.AverageAmount
		sub.Frequency = r.Frequency
		sub.Confidence = r.Confidence
		sub.LastBillingAt = &lastBilling
		sub.NextBillingAt = &nextBilling
		sub.UpdatedAt = now
		refreshes = append(refreshes, detection.Change{Kind: detection.ChangeUpdate, Subscription: sub})
	}
	return refreshes
}

func (s *detectionService) ListSubscriptions(ctx context.Context, userId uuid.UUID) ([]*dto.SubscriptionListItem, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	subscriptions, err := uow.SubscriptionRepository().FindAll(ctx,
		specification.OwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.SubscriptionListItem, 0, len(subscriptions))
	for _, sub := range subscriptions {
		items = append(items, &dto.SubscriptionListItem{
			Id:            sub.Id,
			ProviderName:  sub.ProviderName,
			Amount:        sub.Amount,
			Currency:      sub.Currency,
			Frequency:     string(sub.Frequency),
			Status:        string(sub.Status),
			Confidence:    sub.Confidence,
			IsManual:      sub.IsManual,
			NextBillingAt: sub.NextBillingAt,
		})
	}
	return items, nil
}

func buildDetectionResponse(results []*detection.Result, changes []detection.Change) *dto.RunDetectionResponse {
	res := &dto.RunDetectionResponse{
		Results:              make([]dto.DetectionResultItem, 0, len(results)),
		ChangedSubscriptions: make([]dto.DetectedSubscriptionItem, 0, len(changes)),
	}
	for _, r := range results {
		res.Results = append(res.Results, dto.DetectionResultItem{
			MerchantName:   r.MerchantName,
			Frequency:      string(r.Frequency),
			AverageAmount:  r.AverageAmount,
			Currency:       r.Currency,
			Confidence:     r.Confidence,
			IsSubscription: r.IsSubscription,
			NextDate:       r.NextDate,
			TransactionIds: r.TransactionIds,
		})
	}
	for _, change := range changes {
		kind := "updated"
		if change.Kind == detection.ChangeCreate {
			kind = "created"
		}
		sub := change.Subscription
		res.ChangedSubscriptions = append(res.ChangedSubscriptions, dto.DetectedSubscriptionItem{
			Id:           sub.Id,
			ProviderName: sub.ProviderName,
			Amount:       sub.Amount,
			Currency:     sub.Currency,
			Frequency:    string(sub.Frequency),
			Confidence:   sub.Confidence,
			Change:       kind,
		})
	}
	return res
}
