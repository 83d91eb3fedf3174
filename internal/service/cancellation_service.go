package service

import (
	"context"
	"encoding/json"
	"fmt"

	"subguard-be/internal/dto"
	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"
	"subguard-be/internal/pkg/logger"
	"subguard-be/internal/repository/specification"
	"subguard-be/internal/repository/unitofwork"
	"subguard-be/pkg/cancellation/capability"
	"subguard-be/pkg/cancellation/method"
	"subguard-be/pkg/cancellation/orchestrator"
	"subguard-be/pkg/events"
	pktNats "subguard-be/pkg/nats"

	"github.com/google/uuid"
)

type ICancellationService interface {
	Initiate(ctx context.Context, userId uuid.UUID, req *dto.InitiateCancellationRequest) (*dto.InitiateCancellationResponse, error)
	GetStatus(ctx context.Context, userId uuid.UUID, requestId uuid.UUID) (*dto.CancellationStatusResponse, error)
	Retry(ctx context.Context, userId uuid.UUID, requestId uuid.UUID, req *dto.RetryCancellationRequest) (*dto.InitiateCancellationResponse, error)
	CancelRequest(ctx context.Context, userId uuid.UUID, requestId uuid.UUID, req *dto.CancelRequestRequest) (*dto.CancellationStatusResponse, error)
	ConfirmManual(ctx context.Context, userId uuid.UUID, requestId uuid.UUID, req *dto.ConfirmManualRequest) (*dto.CancellationStatusResponse, error)
	Eligibility(ctx context.Context, userId uuid.UUID, subscriptionId uuid.UUID) (*dto.EligibilityResponse, error)
}

// DispatchMessage is the payload carried on the dispatch queue between the
// API side and the background worker.
type DispatchMessage struct {
	RequestId uuid.UUID `json:"request_id"`
}

type cancellationService struct {
	uowFactory       unitofwork.RepositoryFactory
	assessor         *capability.Assessor
	selector         *method.Selector
	machine          *orchestrator.Machine
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	delivery         NotificationDelivery
	logger           logger.ILogger
}

func NewCancellationService(
	uowFactory unitofwork.RepositoryFactory,
	assessor *capability.Assessor,
	selector *method.Selector,
	machine *orchestrator.Machine,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	delivery NotificationDelivery,
	log logger.ILogger,
) ICancellationService {
	return &cancellationService{
		uowFactory:       uowFactory,
		assessor:         assessor,
		selector:         selector,
		machine:          machine,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		delivery:         delivery,
		logger:           log,
	}
}

// Initiate creates a pending cancellation request and enqueues it for
// background execution. The response is a tracking handle; the caller polls
// status or listens on the websocket for progress.
func (s *cancellationService) Initiate(ctx context.Context, userId uuid.UUID, req *dto.InitiateCancellationRequest) (*dto.InitiateCancellationResponse, error) {
	subscription, err := s.ownedSubscription(ctx, userId, req.SubscriptionId)
	if err != nil {
		return nil, err
	}

	assessment, err := s.assessor.Assess(ctx, subscription.ProviderName)
	if err != nil {
		return nil, err
	}

	preference := entity.PreferenceAuto
	if req.PreferredMethod != "" {
		preference = entity.MethodPreference(req.PreferredMethod)
	}
	selection, err := s.selector.Select(assessment, preference)
	if err != nil {
		return nil, err
	}

	params := orchestrator.InitiateParams{Notes: req.Notes}
	if req.Priority != "" {
		params.Priority = entity.RequestPriority(req.Priority)
	}

	request, err := s.machine.Initiate(ctx, subscription, selection.Method, selection.FallbackChain, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info("CancellationService", "Cancellation initiated", map[string]interface{}{
		"request_id":      request.Id,
		"subscription_id": subscription.Id,
		"method":          string(request.Method),
		"rationale":       selection.Rationale,
	})

	if err := s.dispatch(ctx, request.Id); err != nil {
		// The request exists; the stale sweep will pick it up if the queue
		// dropped it. Do not fail the API call.
		s.logger.Error("CancellationService", "Failed to enqueue dispatch", map[string]interface{}{
			"request_id": request.Id, "error": err.Error(),
		})
	}

	s.announce(ctx, events.TypeCancellationInitiated, subscription, request)

	return &dto.InitiateCancellationResponse{
		RequestId:        request.Id,
		OrchestrationId:  request.OrchestrationId,
		Status:           string(request.Status),
		Method:           string(request.Method),
		TrackingEndpoint: fmt.Sprintf("/api/cancellation/ws?request_id=%s", request.Id),
	}, nil
}

func (s *cancellationService) GetStatus(ctx context.Context, userId uuid.UUID, requestId uuid.UUID) (*dto.CancellationStatusResponse, error) {
	request, err := s.ownedRequest(ctx, userId, requestId)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	logs, err := uow.CancellationRepository().FindLogs(ctx, request.Id)
	if err != nil {
		return nil, err
	}

	return buildStatusResponse(request, logs), nil
}

// Retry supersedes a failed request with a fresh linked one and enqueues it.
func (s *cancellationService) Retry(ctx context.Context, userId uuid.UUID, requestId uuid.UUID, req *dto.RetryCancellationRequest) (*dto.InitiateCancellationResponse, error) {
	request, err := s.ownedRequest(ctx, userId, requestId)
	if err != nil {
		return nil, err
	}

	params := orchestrator.RetryParams{Escalate: req.Escalate}
	if req.ForceMethod != "" {
		forced := entity.CancellationMethod(req.ForceMethod)
		subscription, err := s.ownedSubscription(ctx, userId, request.SubscriptionId)
		if err != nil {
			return nil, err
		}
		assessment, err := s.assessor.Assess(ctx, subscription.ProviderName)
		if err != nil {
			return nil, err
		}
		selection, err := s.selector.Select(assessment, entity.MethodPreference(forced))
		if err != nil {
			return nil, err
		}
		params.ForceMethod = selection.Method
		params.ForceChain = selection.FallbackChain
	}

	retried, err := s.machine.Retry(ctx, request.Id, params)
	if err != nil {
		return nil, err
	}

	if err := s.dispatch(ctx, retried.Id); err != nil {
		s.logger.Error("CancellationService", "Failed to enqueue retry dispatch", map[string]interface{}{
			"request_id": retried.Id, "error": err.Error(),
		})
	}

	return &dto.InitiateCancellationResponse{
		RequestId:        retried.Id,
		OrchestrationId:  retried.OrchestrationId,
		Status:           string(retried.Status),
		Method:           string(retried.Method),
		TrackingEndpoint: fmt.Sprintf("/api/cancellation/ws?request_id=%s", retried.Id),
	}, nil
}

func (s *cancellationService) CancelRequest(ctx context.Context, userId uuid.UUID, requestId uuid.UUID, req *dto.CancelRequestRequest) (*dto.CancellationStatusResponse, error) {
	request, err := s.ownedRequest(ctx, userId, requestId)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.machine.CancelRequest(ctx, request.Id, req.Reason)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	logs, err := uow.CancellationRepository().FindLogs(ctx, cancelled.Id)
	if err != nil {
		return nil, err
	}
	return buildStatusResponse(cancelled, logs), nil
}

func (s *cancellationService) ConfirmManual(ctx context.Context, userId uuid.UUID, requestId uuid.UUID, req *dto.ConfirmManualRequest) (*dto.CancellationStatusResponse, error) {
	request, err := s.ownedRequest(ctx, userId, requestId)
	if err != nil {
		return nil, err
	}

	verdict := orchestrator.ManualVerdict{
		WasSuccessful:    req.WasSuccessful,
		ConfirmationCode: req.ConfirmationCode,
		EffectiveDate:    req.EffectiveDate,
		RefundAmount:     req.RefundAmount,
		Message:          req.Message,
	}
	confirmed, err := s.machine.ConfirmManual(ctx, request.Id, verdict)
	if err != nil {
		return nil, err
	}

	if subscription, subErr := s.ownedSubscription(ctx, userId, confirmed.SubscriptionId); subErr == nil {
		code := events.TypeCancellationCompleted
		if confirmed.Status == entity.CancellationStatusFailed {
			code = events.TypeCancellationFailed
		}
		s.announce(ctx, code, subscription, confirmed)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	logs, err := uow.CancellationRepository().FindLogs(ctx, confirmed.Id)
	if err != nil {
		return nil, err
	}
	return buildStatusResponse(confirmed, logs), nil
}

func (s *cancellationService) Eligibility(ctx context.Context, userId uuid.UUID, subscriptionId uuid.UUID) (*dto.EligibilityResponse, error) {
	subscription, err := s.ownedSubscription(ctx, userId, subscriptionId)
	if err != nil {
		return nil, err
	}

	eligible, reason, err := s.machine.CanInitiate(ctx, subscription)
	if err != nil {
		return nil, err
	}
	return &dto.EligibilityResponse{Eligible: eligible, Reason: reason}, nil
}

func (s *cancellationService) dispatch(ctx context.Context, requestId uuid.UUID) error {
	payload, err := json.Marshal(DispatchMessage{RequestId: requestId})
	if err != nil {
		return err
	}
	return s.publisherService.Publish(ctx, payload)
}

// announce pushes the websocket progress frame and the bus event. Both are
// best effort.
func (s *cancellationService) announce(ctx context.Context, code string, subscription *entity.Subscription, request *entity.CancellationRequest) {
	if s.delivery != nil {
		s.delivery.Send(request.UserId, "cancellation_progress", map[string]interface{}{
			"request_id":      request.Id,
			"subscription_id": request.SubscriptionId,
			"provider":        subscription.ProviderName,
			"status":          string(request.Status),
			"method":          string(request.Method),
		})
	}
	if s.eventPublisher != nil {
		evt := events.NewCancellationEvent(code, request.UserId, request.SubscriptionId, request.Id,
			subscription.ProviderName, string(request.Method), string(request.Status))
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("CancellationService", "Failed to publish cancellation event", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (s *cancellationService) ownedSubscription(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*entity.Subscription, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	subscription, err := uow.SubscriptionRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.OwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, apperrors.NewNotFound("subscription")
	}
	return subscription, nil
}

func (s *cancellationService) ownedRequest(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*entity.CancellationRequest, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	request, err := uow.CancellationRepository().FindOneRequest(ctx,
		specification.ByID{ID: id},
		specification.OwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NewNotFound("cancellation request")
	}
	return request, nil
}

func buildStatusResponse(request *entity.CancellationRequest, logs []*entity.CancellationLog) *dto.CancellationStatusResponse {
	res := &dto.CancellationStatusResponse{
		RequestId:        request.Id,
		OrchestrationId:  request.OrchestrationId,
		SubscriptionId:   request.SubscriptionId,
		Status:           string(request.Status),
		Method:           string(request.Method),
		FallbackChain:    make([]string, 0, len(request.FallbackChain)),
		Attempts:         request.Attempts,
		MaxAttempts:      request.MaxAttempts,
		Notes:            request.Notes,
		ConfirmationCode: request.ConfirmationCode,
		EffectiveDate:    request.EffectiveDate,
		RefundAmount:     request.RefundAmount,
		NextSteps:        nextSteps(request),
		Logs:             make([]dto.CancellationLogItem, 0, len(logs)),
		CreatedAt:        request.CreatedAt,
		CompletedAt:      request.CompletedAt,
	}
	for _, m := range request.FallbackChain {
		res.FallbackChain = append(res.FallbackChain, string(m))
	}
	if request.LastError != nil {
		res.ErrorCode = request.LastError.Code
		res.ErrorMessage = request.LastError.Message
	}
	for _, l := range logs {
		res.Logs = append(res.Logs, dto.CancellationLogItem{
			Action:          l.Action,
			Status:          string(l.Status),
			Message:         l.Message,
			Metadata:        l.Metadata,
			SincePreviousMs: l.SincePrevious.Milliseconds(),
			CreatedAt:       l.CreatedAt,
		})
	}
	return res
}

// nextSteps spells out what the owner can do from the current state.
func nextSteps(request *entity.CancellationRequest) []string {
	switch request.Status {
	case entity.CancellationStatusPending, entity.CancellationStatusProcessing:
		return []string{"Wait for the attempt to finish, progress is pushed in real time", "Abandon the request if you changed your mind"}
	case entity.CancellationStatusRequiresManual:
		return []string{"Follow the instructions in the notes", "Confirm the outcome once you have cancelled (or failed to)"}
	case entity.CancellationStatusFailed:
		return []string{"Retry with the same or a forced method", "Escalate the retry to raise the attempt ceiling"}
	case entity.CancellationStatusCompleted:
		return []string{"Nothing to do, the subscription is cancelled"}
	default:
		return nil
	}
}
