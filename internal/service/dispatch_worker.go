package service

import (
	"context"
	"encoding/json"
	"time"

	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"
	"subguard-be/internal/pkg/logger"
	"subguard-be/internal/repository/specification"
	"subguard-be/internal/repository/unitofwork"
	"subguard-be/pkg/cancellation/capability"
	"subguard-be/pkg/cancellation/executor"
	"subguard-be/pkg/cancellation/orchestrator"
	"subguard-be/pkg/events"
	pktNats "subguard-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IDispatchWorker interface {
	Consume(ctx context.Context) error
	RunStaleSweep(ctx context.Context, interval time.Duration)
}

// dispatchWorker executes cancellation attempts off the dispatch queue. One
// message is one attempt: it claims the request, runs the method's executor
// under its timeout, feeds the outcome back into the state machine, and
// re-enqueues when the machine decided to fall back.
type dispatchWorker struct {
	pubSub           *gochannel.GoChannel
	topicName        string
	uowFactory       unitofwork.RepositoryFactory
	machine          *orchestrator.Machine
	registry         *executor.Registry
	assessor         *capability.Assessor
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	delivery         NotificationDelivery
	logger           logger.ILogger
}

func NewDispatchWorker(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	machine *orchestrator.Machine,
	registry *executor.Registry,
	assessor *capability.Assessor,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	delivery NotificationDelivery,
	log logger.ILogger,
) IDispatchWorker {
	return &dispatchWorker{
		pubSub:           pubSub,
		topicName:        topicName,
		uowFactory:       uowFactory,
		machine:          machine,
		registry:         registry,
		assessor:         assessor,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		delivery:         delivery,
		logger:           log,
	}
}

func (w *dispatchWorker) Consume(ctx context.Context) error {
	messages, err := w.pubSub.Subscribe(ctx, w.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			w.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (w *dispatchWorker) processMessage(ctx context.Context, msg *message.Message) {
	var payload DispatchMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		w.logger.Error("DispatchWorker", "Failed to unmarshal dispatch message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // malformed, retrying will not help
		return
	}

	request, claimed, err := w.machine.BeginAttempt(ctx, payload.RequestId)
	if err != nil {
		if apperrors.IsNotFound(err) {
			msg.Ack()
			return
		}
		w.logger.Error("DispatchWorker", "Failed to claim request", map[string]interface{}{
			"request_id": payload.RequestId, "error": err.Error(),
		})
		msg.Nack()
		return
	}
	if !claimed {
		// Another transition won the race (owner cancelled, another worker
		// claimed it). Nothing to execute.
		msg.Ack()
		return
	}

	w.execute(ctx, request)
	msg.Ack()
}

func (w *dispatchWorker) execute(ctx context.Context, request *entity.CancellationRequest) {
	uow := w.uowFactory.NewUnitOfWork(ctx)
	subscription, err := uow.SubscriptionRepository().FindOne(ctx, specification.ByID{ID: request.SubscriptionId})
	if err != nil || subscription == nil {
		w.logger.Error("DispatchWorker", "Subscription lookup failed for claimed request", map[string]interface{}{
			"request_id": request.Id, "subscription_id": request.SubscriptionId,
		})
		w.settle(ctx, subscription, request, nil, apperrors.NewExecutor(apperrors.ExecutorNetworkError, "subscription record unavailable"))
		return
	}

	assessment, err := w.assessor.Assess(ctx, subscription.ProviderName)
	if err != nil {
		w.settle(ctx, subscription, request, nil, apperrors.NewExecutor(apperrors.ExecutorNetworkError, "capability assessment unavailable"))
		return
	}

	exec, ok := w.registry.For(request.Method)
	if !ok {
		w.settle(ctx, subscription, request, nil, apperrors.NewExecutor(apperrors.ExecutorProviderRejected, "no executor registered for method "+string(request.Method)))
		return
	}

	input := &executor.Input{
		Request:      request,
		Subscription: subscription,
		Assessment:   assessment,
	}

	execCtx, cancel := context.WithTimeout(ctx, w.machine.MethodTimeout(request.Method))
	outcome, execErr := exec.Execute(execCtx, input)
	cancel()

	w.settle(ctx, subscription, request, outcome, execErr)
}

// settle feeds the executor result into the state machine and acts on the
// disposition: fallback goes back on the queue, everything else is announced.
func (w *dispatchWorker) settle(ctx context.Context, subscription *entity.Subscription, request *entity.CancellationRequest, outcome *executor.Outcome, execErr error) {
	updated, disposition, err := w.machine.HandleOutcome(ctx, request, outcome, execErr)
	if err != nil {
		w.logger.Error("DispatchWorker", "Failed to settle attempt", map[string]interface{}{
			"request_id": request.Id, "error": err.Error(),
		})
		return
	}

	switch disposition {
	case orchestrator.DispositionFallback:
		payload, _ := json.Marshal(DispatchMessage{RequestId: updated.Id})
		if err := w.publisherService.Publish(ctx, payload); err != nil {
			// The stale sweep re-arms pending requests that fell off the queue.
			w.logger.Error("DispatchWorker", "Failed to re-enqueue fallback", map[string]interface{}{
				"request_id": updated.Id, "error": err.Error(),
			})
		}
		w.push(subscription, updated)
	case orchestrator.DispositionCompleted:
		w.announce(ctx, events.TypeCancellationCompleted, subscription, updated)
	case orchestrator.DispositionFailed:
		w.announce(ctx, events.TypeCancellationFailed, subscription, updated)
	case orchestrator.DispositionRequiresManual:
		w.announce(ctx, events.TypeCancellationRequiresManual, subscription, updated)
	case orchestrator.DispositionDiscarded:
		// Late result, already logged by the machine.
	}
}

func (w *dispatchWorker) announce(ctx context.Context, code string, subscription *entity.Subscription, request *entity.CancellationRequest) {
	w.push(subscription, request)
	if w.eventPublisher == nil {
		return
	}
	provider := ""
	if subscription != nil {
		provider = subscription.ProviderName
	}
	evt := events.NewCancellationEvent(code, request.UserId, request.SubscriptionId, request.Id,
		provider, string(request.Method), string(request.Status))
	if err := w.eventPublisher.Publish(ctx, evt); err != nil {
		w.logger.Warn("DispatchWorker", "Failed to publish outcome event", map[string]interface{}{"error": err.Error()})
	}
}

func (w *dispatchWorker) push(subscription *entity.Subscription, request *entity.CancellationRequest) {
	if w.delivery == nil {
		return
	}
	provider := ""
	if subscription != nil {
		provider = subscription.ProviderName
	}
	frame := map[string]interface{}{
		"request_id":      request.Id,
		"subscription_id": request.SubscriptionId,
		"provider":        provider,
		"status":          string(request.Status),
		"method":          string(request.Method),
		"attempts":        request.Attempts,
	}
	if request.LastError != nil {
		frame["error_code"] = request.LastError.Code
	}
	w.delivery.Send(request.UserId, "cancellation_progress", frame)
}

// RunStaleSweep requeues requests stuck in processing past their method
// timeout, once at startup to reclaim anything stranded by a restart and
// then on every tick. Runs until the context is cancelled.
func (w *dispatchWorker) RunStaleSweep(ctx context.Context, interval time.Duration) {
	w.sweepOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *dispatchWorker) sweepOnce(ctx context.Context) {
	swept, err := w.machine.SweepStaleProcessing(ctx)
	if err != nil {
		w.logger.Error("DispatchWorker", "Stale sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if swept > 0 {
		w.logger.Warn("DispatchWorker", "Requeued stale processing requests", map[string]interface{}{"count": swept})
		w.redispatchPending(ctx)
	}
}

// redispatchPending puts every pending request back on the queue. Sweep
// fallbacks land in pending without a queue entry, and this also recovers
// requests lost to a crash between create and enqueue.
func (w *dispatchWorker) redispatchPending(ctx context.Context) {
	uow := w.uowFactory.NewUnitOfWork(ctx)
	pending, err := uow.CancellationRepository().FindAllRequests(ctx,
		specification.ByStatus{Status: entity.CancellationStatusPending},
	)
	if err != nil {
		w.logger.Error("DispatchWorker", "Failed to list pending requests", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, request := range pending {
		payload, _ := json.Marshal(DispatchMessage{RequestId: request.Id})
		if err := w.publisherService.Publish(ctx, payload); err != nil {
			w.logger.Error("DispatchWorker", "Failed to redispatch pending request", map[string]interface{}{
				"request_id": request.Id, "error": err.Error(),
			})
		}
	}
}
