package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"subguard-be/internal/config"
	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"
	"subguard-be/internal/pkg/logger"
	"subguard-be/pkg/cancellation/executor"

	"github.com/google/uuid"
)

// Disposition tells the caller what a transition decided, so the worker
// knows whether to redispatch and the service knows which event to emit.
type Disposition string

const (
	DispositionDispatched     Disposition = "dispatched"
	DispositionCompleted      Disposition = "completed"
	DispositionRequiresManual Disposition = "requires_manual"
	DispositionFallback       Disposition = "fallback"
	DispositionFailed         Disposition = "failed"
	// DispositionDiscarded means the request reached a terminal state while
	// the executor was still running; the late result was logged and dropped.
	DispositionDiscarded Disposition = "discarded"
)

// InitiateParams carries the caller-supplied knobs for a new request.
type InitiateParams struct {
	Priority entity.RequestPriority
	Notes    string
}

// RetryParams shapes an explicit retry. ForceMethod and ForceChain replace
// the superseded request's plan when set; Escalate raises the attempt
// ceiling and the priority.
type RetryParams struct {
	ForceMethod entity.CancellationMethod
	ForceChain  []entity.CancellationMethod
	Escalate    bool
}

// ManualVerdict is the owner's answer to a requires_manual handoff.
type ManualVerdict struct {
	WasSuccessful    bool
	ConfirmationCode string
	EffectiveDate    *time.Time
	RefundAmount     *float64
	Message          string
}

// Machine owns cancellation request lifecycles. It is a stateless service
// value built from explicit dependencies and safe for concurrent use; the
// store's compare-and-swap updates serialize transitions per request.
type Machine struct {
	stores Stores
	tx     TxRunner
	cfg    config.OrchestrationConfig
	now    func() time.Time
	logger logger.ILogger
}

func NewMachine(stores Stores, tx TxRunner, cfg config.OrchestrationConfig, now func() time.Time, log logger.ILogger) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{stores: stores, tx: tx, cfg: cfg, now: now, logger: log}
}

// checkInitiate enforces the eligibility rules: active subscription, enough
// detection confidence, and the one-in-flight-request invariant.
func (m *Machine) checkInitiate(ctx context.Context, subscription *entity.Subscription) error {
	if subscription.Status != entity.SubscriptionStatusActive {
		return apperrors.NewValidation("subscriptionId", "subscription is not active")
	}
	if !subscription.IsManual && subscription.Confidence < m.cfg.MinCancellableConfidence {
		return apperrors.NewValidation("subscriptionId",
			fmt.Sprintf("detection confidence %.2f is below the cancellable threshold", subscription.Confidence))
	}
	inflight, err := m.stores.Requests.FindNonTerminalForSubscription(ctx, subscription.Id)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	if inflight != nil {
		return apperrors.NewConflict("a cancellation request is already in flight for this subscription")
	}
	return nil
}

// CanInitiate is the read-only eligibility probe behind the eligibility
// endpoint. The string reason is owner-facing.
func (m *Machine) CanInitiate(ctx context.Context, subscription *entity.Subscription) (bool, string, error) {
	err := m.checkInitiate(ctx, subscription)
	switch {
	case err == nil:
		return true, "", nil
	case apperrors.IsValidation(err):
		var v *apperrors.ValidationError
		errors.As(err, &v)
		return false, v.Message, nil
	case apperrors.IsConflict(err):
		return false, err.Error(), nil
	default:
		return false, "", err
	}
}

// Initiate creates a pending request. The caller dispatches it afterwards;
// creation never blocks on execution.
func (m *Machine) Initiate(ctx context.Context, subscription *entity.Subscription, method entity.CancellationMethod, fallbackChain []entity.CancellationMethod, params InitiateParams) (*entity.CancellationRequest, error) {
	if err := m.checkInitiate(ctx, subscription); err != nil {
		return nil, err
	}

	priority := params.Priority
	if priority == "" {
		priority = entity.PriorityNormal
	}

	request := &entity.CancellationRequest{
		Id:              uuid.New(),
		OrchestrationId: uuid.New(),
		SubscriptionId:  subscription.Id,
		UserId:          subscription.UserId,
		Method:          method,
		FallbackChain:   fallbackChain,
		Priority:        priority,
		MaxAttempts:     m.cfg.DefaultMaxAttempts,
		Status:          entity.CancellationStatusPending,
		Notes:           params.Notes,
		CreatedAt:       m.now(),
		UpdatedAt:       m.now(),
	}

	err := m.tx.InTx(ctx, func(tx Stores) error {
		if err := tx.Requests.Create(ctx, request); err != nil {
			return err
		}
		return m.appendLog(ctx, tx.Logs, request, "initiate",
			fmt.Sprintf("cancellation initiated via %s", method), map[string]interface{}{
				"method":         string(method),
				"fallback_chain": chainStrings(fallbackChain),
			})
	})
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return request, nil
}

// BeginAttempt moves pending → processing before the executor runs. A false
// return means the request is no longer pending (cancelled meanwhile or
// picked up twice) and the caller must drop the job silently.
func (m *Machine) BeginAttempt(ctx context.Context, requestId uuid.UUID) (*entity.CancellationRequest, bool, error) {
	request, err := m.getRequest(ctx, requestId)
	if err != nil {
		return nil, false, err
	}
	if request.Status != entity.CancellationStatusPending {
		return nil, false, nil
	}

	now := m.now()
	request.Status = entity.CancellationStatusProcessing
	request.Attempts++
	request.LastAttemptAt = &now
	request.UpdatedAt = now

	swapped, err := m.stores.Requests.UpdateIf(ctx, request, entity.CancellationStatusPending)
	if err != nil {
		return nil, false, apperrors.NewInternal(err)
	}
	if !swapped {
		return nil, false, nil
	}

	if err := m.appendLog(ctx, m.stores.Logs, request, "dispatch",
		fmt.Sprintf("attempt %d/%d via %s", request.Attempts, request.MaxAttempts, request.Method),
		map[string]interface{}{"method": string(request.Method), "attempt": request.Attempts}); err != nil {
		return nil, false, err
	}
	return request, true, nil
}

// HandleOutcome applies the executor's verdict to a processing request and
// returns what happened. Late results against an already-terminal request
// are logged and discarded in favor of the terminal state.
func (m *Machine) HandleOutcome(ctx context.Context, request *entity.CancellationRequest, outcome *executor.Outcome, execErr error) (*entity.CancellationRequest, Disposition, error) {
	if execErr != nil {
		detail, ok := apperrors.AsExecutor(execErr)
		if !ok {
			detail = apperrors.NewExecutor(apperrors.ExecutorNetworkError, execErr.Error())
		}
		return m.handleFailure(ctx, request, detail)
	}
	if outcome.RequiresManual {
		return m.handleManualHandoff(ctx, request, outcome)
	}
	return m.complete(ctx, request, entity.CancellationStatusProcessing, outcome, "executor reported success")
}

// complete is the only path into the completed state. Request update and
// subscription deactivation commit in one transaction, no partial result is
// observable. expected is the CAS precondition (processing, or
// requires_manual for owner confirmations).
func (m *Machine) complete(ctx context.Context, request *entity.CancellationRequest, expected entity.CancellationStatus, outcome *executor.Outcome, message string) (*entity.CancellationRequest, Disposition, error) {
	now := m.now()
	updated := *request
	updated.Status = entity.CancellationStatusCompleted
	updated.ConfirmationCode = outcome.ConfirmationCode
	updated.EffectiveDate = outcome.EffectiveDate
	updated.RefundAmount = outcome.RefundAmount
	updated.LastError = nil
	updated.CompletedAt = &now
	updated.UpdatedAt = now

	var swapped bool
	err := m.tx.InTx(ctx, func(tx Stores) error {
		var err error
		swapped, err = tx.Requests.UpdateIf(ctx, &updated, expected)
		if err != nil || !swapped {
			return err
		}
		if err := tx.Subscriptions.MarkCancelled(ctx, updated.SubscriptionId); err != nil {
			return err
		}
		return m.appendLog(ctx, tx.Logs, &updated, "complete", message, map[string]interface{}{
			"confirmation_code": outcome.ConfirmationCode,
		})
	})
	if err != nil {
		return nil, "", apperrors.NewInternal(err)
	}
	if !swapped {
		return m.discardLateResult(ctx, request, "success")
	}
	return &updated, DispositionCompleted, nil
}

func (m *Machine) handleManualHandoff(ctx context.Context, request *entity.CancellationRequest, outcome *executor.Outcome) (*entity.CancellationRequest, Disposition, error) {
	now := m.now()
	updated := *request
	updated.Status = entity.CancellationStatusRequiresManual
	if outcome.Instructions != "" {
		updated.Notes = outcome.Instructions
	}
	updated.UpdatedAt = now

	swapped, err := m.stores.Requests.UpdateIf(ctx, &updated, entity.CancellationStatusProcessing)
	if err != nil {
		return nil, "", apperrors.NewInternal(err)
	}
	if !swapped {
		return m.discardLateResult(ctx, request, "manual handoff")
	}
	if err := m.appendLog(ctx, m.stores.Logs, &updated, "manual_handoff",
		"owner action required to finish the cancellation", nil); err != nil {
		return nil, "", err
	}
	return &updated, DispositionRequiresManual, nil
}

// handleFailure applies the error propagation policy: auth_required hands
// off to the owner, auto-retryable codes walk the fallback chain while
// attempts remain, everything else fails in place.
func (m *Machine) handleFailure(ctx context.Context, request *entity.CancellationRequest, detail *apperrors.ExecutorError) (*entity.CancellationRequest, Disposition, error) {
	if detail.Code == apperrors.ExecutorAuthRequired {
		return m.handleManualHandoff(ctx, request, &executor.Outcome{
			RequiresManual: true,
			Instructions:   detail.Message,
		})
	}

	now := m.now()
	lastError := &entity.ErrorDetail{Code: string(detail.Code), Message: detail.Message}

	if detail.IsAutoRetryable() && request.Attempts < request.MaxAttempts {
		if next, rest, ok := request.NextFallback(); ok {
			updated := *request
			updated.Status = entity.CancellationStatusPending
			updated.Method = next
			updated.FallbackChain = rest
			updated.LastError = lastError
			updated.UpdatedAt = now

			swapped, err := m.stores.Requests.UpdateIf(ctx, &updated, entity.CancellationStatusProcessing)
			if err != nil {
				return nil, "", apperrors.NewInternal(err)
			}
			if !swapped {
				return m.discardLateResult(ctx, request, string(detail.Code))
			}
			if err := m.appendLog(ctx, m.stores.Logs, &updated, "fallback",
				fmt.Sprintf("%s failed (%s), falling back to %s", request.Method, detail.Code, next),
				map[string]interface{}{"error_code": string(detail.Code), "next_method": string(next)}); err != nil {
				return nil, "", err
			}
			return &updated, DispositionFallback, nil
		}
	}

	updated := *request
	updated.Status = entity.CancellationStatusFailed
	updated.LastError = lastError
	updated.UpdatedAt = now

	swapped, err := m.stores.Requests.UpdateIf(ctx, &updated, entity.CancellationStatusProcessing)
	if err != nil {
		return nil, "", apperrors.NewInternal(err)
	}
	if !swapped {
		return m.discardLateResult(ctx, request, string(detail.Code))
	}
	if err := m.appendLog(ctx, m.stores.Logs, &updated, "fail",
		fmt.Sprintf("%s failed: %s", request.Method, detail.Message),
		map[string]interface{}{"error_code": string(detail.Code)}); err != nil {
		return nil, "", err
	}
	return &updated, DispositionFailed, nil
}

// discardLateResult records an executor result that lost the race against a
// concurrent transition, typically a user cancellation. The stored terminal
// state wins.
func (m *Machine) discardLateResult(ctx context.Context, request *entity.CancellationRequest, result string) (*entity.CancellationRequest, Disposition, error) {
	current, err := m.getRequest(ctx, request.Id)
	if err != nil {
		return nil, "", err
	}
	if err := m.appendLog(ctx, m.stores.Logs, current, "late_result_discarded",
		fmt.Sprintf("executor reported %s after the request left %s, result discarded", result, request.Status),
		map[string]interface{}{"reported": result}); err != nil {
		return nil, "", err
	}
	return current, DispositionDiscarded, nil
}

// CancelRequest is the owner abandoning the request. Permitted from every
// non-terminal state; the CAS loop makes it race-safe against a concurrently
// finishing executor.
func (m *Machine) CancelRequest(ctx context.Context, requestId uuid.UUID, reason string) (*entity.CancellationRequest, error) {
	for attempt := 0; attempt < 3; attempt++ {
		request, err := m.getRequest(ctx, requestId)
		if err != nil {
			return nil, err
		}
		if request.Status.IsTerminal() {
			return nil, apperrors.NewConflict(fmt.Sprintf("request is already %s", request.Status))
		}

		updated := *request
		updated.Status = entity.CancellationStatusCancelled
		updated.UpdatedAt = m.now()

		swapped, err := m.stores.Requests.UpdateIf(ctx, &updated, request.Status)
		if err != nil {
			return nil, apperrors.NewInternal(err)
		}
		if !swapped {
			continue
		}
		if err := m.appendLog(ctx, m.stores.Logs, &updated, "cancel",
			cancelMessage(reason), map[string]interface{}{"reason": reason}); err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, apperrors.NewConflict("request is transitioning concurrently, try again")
}

// ConfirmManual resolves a requires_manual handoff with the owner's verdict.
// A success verdict completes atomically with the subscription update.
func (m *Machine) ConfirmManual(ctx context.Context, requestId uuid.UUID, verdict ManualVerdict) (*entity.CancellationRequest, error) {
	request, err := m.getRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if request.Status != entity.CancellationStatusRequiresManual {
		return nil, apperrors.NewConflict(fmt.Sprintf("request is %s, confirmation applies to requires_manual only", request.Status))
	}

	if verdict.WasSuccessful {
		updated, _, err := m.complete(ctx, request, entity.CancellationStatusRequiresManual, &executor.Outcome{
			ConfirmationCode: verdict.ConfirmationCode,
			EffectiveDate:    verdict.EffectiveDate,
			RefundAmount:     verdict.RefundAmount,
		}, "owner confirmed the cancellation")
		return updated, err
	}

	now := m.now()
	updated := *request
	updated.Status = entity.CancellationStatusFailed
	updated.LastError = &entity.ErrorDetail{
		Code:    string(apperrors.ExecutorProviderRejected),
		Message: failureMessage(verdict.Message),
	}
	updated.UpdatedAt = now

	swapped, err := m.stores.Requests.UpdateIf(ctx, &updated, entity.CancellationStatusRequiresManual)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if !swapped {
		return nil, apperrors.NewConflict("request transitioned concurrently")
	}
	if err := m.appendLog(ctx, m.stores.Logs, &updated, "manual_confirmed_failure",
		failureMessage(verdict.Message), nil); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Retry supersedes a failed request with a new linked pending one under the
// same orchestration id. Without escalation the inherited attempt ceiling
// still applies, an exhausted request needs Escalate to run again.
func (m *Machine) Retry(ctx context.Context, requestId uuid.UUID, params RetryParams) (*entity.CancellationRequest, error) {
	old, err := m.getRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if old.Status != entity.CancellationStatusFailed {
		return nil, apperrors.NewConflict(fmt.Sprintf("only failed requests can be retried, this one is %s", old.Status))
	}
	if !params.Escalate && old.Attempts >= old.MaxAttempts {
		return nil, apperrors.NewConflict("attempt ceiling reached, escalate to retry again")
	}

	method := old.Method
	chain := old.FallbackChain
	if params.ForceMethod != "" {
		method = params.ForceMethod
		chain = params.ForceChain
	}

	maxAttempts := old.MaxAttempts
	priority := old.Priority
	if params.Escalate {
		maxAttempts += m.cfg.EscalateByAttempts
		priority = entity.PriorityHigh
	}

	now := m.now()
	retry := &entity.CancellationRequest{
		Id:              uuid.New(),
		OrchestrationId: old.OrchestrationId,
		SubscriptionId:  old.SubscriptionId,
		UserId:          old.UserId,
		Method:          method,
		FallbackChain:   chain,
		Priority:        priority,
		Attempts:        old.Attempts,
		MaxAttempts:     maxAttempts,
		Status:          entity.CancellationStatusPending,
		Notes:           old.Notes,
		RetryLink:       &entity.RetryLink{RetriedFromId: old.Id},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = m.tx.InTx(ctx, func(tx Stores) error {
		// the superseded request leaves the non-terminal set so the
		// one-in-flight invariant keeps holding
		superseded := *old
		superseded.Status = entity.CancellationStatusCancelled
		superseded.UpdatedAt = now
		swapped, err := tx.Requests.UpdateIf(ctx, &superseded, entity.CancellationStatusFailed)
		if err != nil {
			return err
		}
		if !swapped {
			return apperrors.NewConflict("request transitioned concurrently")
		}
		if err := m.appendLog(ctx, tx.Logs, &superseded, "superseded_by_retry",
			fmt.Sprintf("superseded by retry request %s", retry.Id), map[string]interface{}{
				"retry_request_id": retry.Id.String(),
			}); err != nil {
			return err
		}

		if err := tx.Requests.Create(ctx, retry); err != nil {
			return err
		}
		return m.appendLog(ctx, tx.Logs, retry, "retry",
			fmt.Sprintf("retrying via %s (attempts %d/%d)", method, retry.Attempts, retry.MaxAttempts),
			map[string]interface{}{
				"retried_from": old.Id.String(),
				"escalated":    params.Escalate,
			})
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return nil, err
		}
		return nil, apperrors.NewInternal(err)
	}
	return retry, nil
}

// SweepStaleProcessing fails requests stuck in processing past their
// method's deadline, feeding them through the normal failure path so the
// fallback chain still applies. Run on startup and on a periodic tick.
func (m *Machine) SweepStaleProcessing(ctx context.Context) (int, error) {
	// widest cutoff first, the per-method deadline is checked below
	cutoff := m.now().Add(-m.shortestTimeout())
	stale, err := m.stores.Requests.FindStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, apperrors.NewInternal(err)
	}

	swept := 0
	for _, request := range stale {
		if request.LastAttemptAt == nil {
			continue
		}
		deadline := request.LastAttemptAt.Add(m.MethodTimeout(request.Method))
		if m.now().Before(deadline) {
			continue
		}
		timeout := apperrors.NewExecutor(apperrors.ExecutorTimeout,
			fmt.Sprintf("no executor result within %s", m.MethodTimeout(request.Method)))
		if _, _, err := m.handleFailure(ctx, request, timeout); err != nil {
			m.logger.Error("Orchestrator", "stale sweep transition failed", map[string]interface{}{
				"request_id": request.Id.String(),
				"error":      err.Error(),
			})
			continue
		}
		swept++
	}
	return swept, nil
}

// MethodTimeout is the maximum allowed executor duration per method.
func (m *Machine) MethodTimeout(method entity.CancellationMethod) time.Duration {
	switch method {
	case entity.MethodApi:
		return m.cfg.ApiTimeout
	case entity.MethodAutomation:
		return m.cfg.AutomationTimeout
	default:
		return m.cfg.ManualTimeout
	}
}

func (m *Machine) shortestTimeout() time.Duration {
	shortest := m.cfg.ApiTimeout
	if m.cfg.AutomationTimeout < shortest {
		shortest = m.cfg.AutomationTimeout
	}
	if m.cfg.ManualTimeout < shortest {
		shortest = m.cfg.ManualTimeout
	}
	return shortest
}

func (m *Machine) getRequest(ctx context.Context, id uuid.UUID) (*entity.CancellationRequest, error) {
	request, err := m.stores.Requests.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if request == nil {
		return nil, apperrors.NewNotFound("cancellation request")
	}
	return request, nil
}

// appendLog writes the single audit entry every transition owes, stamping
// the elapsed time since the previous entry for the same request.
func (m *Machine) appendLog(ctx context.Context, logs AuditLog, request *entity.CancellationRequest, action, message string, metadata map[string]interface{}) error {
	now := m.now()
	var since time.Duration
	if previous, err := logs.LastEntryTime(ctx, request.Id); err == nil && previous != nil {
		since = now.Sub(*previous)
	}
	entry := &entity.CancellationLog{
		Id:            uuid.New(),
		RequestId:     request.Id,
		Action:        action,
		Status:        request.Status,
		Message:       message,
		Metadata:      metadata,
		SincePrevious: since,
		CreatedAt:     now,
	}
	if err := logs.Append(ctx, entry); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

func chainStrings(chain []entity.CancellationMethod) []string {
	out := make([]string, len(chain))
	for i, method := range chain {
		out[i] = string(method)
	}
	return out
}

func cancelMessage(reason string) string {
	if reason == "" {
		return "cancelled by owner"
	}
	return "cancelled by owner: " + reason
}

func failureMessage(message string) string {
	if message == "" {
		return "owner reported the cancellation did not go through"
	}
	return message
}
