package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"subguard-be/internal/config"
	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"
	"subguard-be/internal/pkg/logger"
	"subguard-be/pkg/cancellation/executor"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }
func (nopLogger) GetLogs(level string, limit, offset int) ([]logger.LogEntry, error) {
	return nil, nil
}
func (nopLogger) GetLogById(id string) (*logger.LogEntry, error) { return nil, nil }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	start, _ := time.Parse(time.RFC3339, "2024-08-01T10:00:00Z")
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func orchestrationConfig() config.OrchestrationConfig {
	return config.OrchestrationConfig{
		DefaultMaxAttempts:       3,
		EscalateByAttempts:       2,
		ApiTimeout:               30 * time.Second,
		AutomationTimeout:        5 * time.Minute,
		ManualTimeout:            72 * time.Hour,
		MinCancellableConfidence: 0.5,
	}
}

type fixture struct {
	machine *Machine
	store   *memStores
	clock   *fakeClock
	sub     *entity.Subscription
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStores()
	clock := newFakeClock()
	machine := NewMachine(store.stores(), memTx{s: store}, orchestrationConfig(), clock.Now, nopLogger{})

	sub := &entity.Subscription{
		Id:             uuid.New(),
		UserId:         uuid.New(),
		ProviderName:   "Netflix",
		NormalizedName: "netflix",
		Amount:         15.99,
		Currency:       "USD",
		Frequency:      entity.FrequencyMonthly,
		Status:         entity.SubscriptionStatusActive,
		Confidence:     0.87,
	}
	store.subs[sub.Id] = *sub
	return &fixture{machine: machine, store: store, clock: clock, sub: sub}
}

func (f *fixture) initiate(t *testing.T, chain ...entity.CancellationMethod) *entity.CancellationRequest {
	t.Helper()
	request, err := f.machine.Initiate(context.Background(), f.sub, entity.MethodApi, chain, InitiateParams{})
	require.NoError(t, err)
	return request
}

func (f *fixture) beginAttempt(t *testing.T, id uuid.UUID) *entity.CancellationRequest {
	t.Helper()
	request, ok, err := f.machine.BeginAttempt(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	return request
}

func TestInitiateEnforcesSingleInflightRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.initiate(t)
	assert.Equal(t, entity.CancellationStatusPending, first.Status)

	_, err := f.machine.Initiate(ctx, f.sub, entity.MethodApi, nil, InitiateParams{})
	assert.True(t, apperrors.IsConflict(err))

	// terminal resolution reopens the door
	_, err = f.machine.CancelRequest(ctx, first.Id, "changed my mind")
	require.NoError(t, err)

	_, err = f.machine.Initiate(ctx, f.sub, entity.MethodApi, nil, InitiateParams{})
	assert.NoError(t, err)
}

func TestInitiateConfidenceGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	weak := *f.sub
	weak.Id = uuid.New()
	weak.Confidence = 0.3
	f.store.subs[weak.Id] = weak

	_, err := f.machine.Initiate(ctx, &weak, entity.MethodApi, nil, InitiateParams{})
	assert.True(t, apperrors.IsValidation(err))

	// manual subscriptions bypass the confidence gate
	weak.IsManual = true
	_, err = f.machine.Initiate(ctx, &weak, entity.MethodManual, nil, InitiateParams{})
	assert.NoError(t, err)

	eligible, reason, err := f.machine.CanInitiate(ctx, f.sub)
	assert.NoError(t, err)
	assert.True(t, eligible)
	assert.Empty(t, reason)
}

func TestCompletionIsAtomicWithSubscriptionUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t)
	request = f.beginAttempt(t, request.Id)

	updated, disposition, err := f.machine.HandleOutcome(ctx, request, &executor.Outcome{
		ConfirmationCode: "CNF-1",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, DispositionCompleted, disposition)
	assert.Equal(t, entity.CancellationStatusCompleted, updated.Status)
	assert.Equal(t, "CNF-1", updated.ConfirmationCode)
	assert.NotNil(t, updated.CompletedAt)
	assert.Equal(t, entity.SubscriptionStatusCancelled, f.store.GetSubscription(f.sub.Id).Status)
	assert.Equal(t, []string{"initiate", "dispatch", "complete"}, f.store.logActions(request.Id))
}

func TestCompletionRollsBackWhenSubscriptionUpdateFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t)
	request = f.beginAttempt(t, request.Id)

	f.store.failMarkCancelled = true
	_, _, err := f.machine.HandleOutcome(ctx, request, &executor.Outcome{ConfirmationCode: "CNF-1"}, nil)
	assert.Error(t, err)

	stored, err := f.store.Get(ctx, request.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.CancellationStatusProcessing, stored.Status, "request must not be left completed")
	assert.Equal(t, entity.SubscriptionStatusActive, f.store.GetSubscription(f.sub.Id).Status)
}

func TestAuthRequiredRoutesToRequiresManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t, entity.MethodAutomation, entity.MethodManual)
	request = f.beginAttempt(t, request.Id)

	updated, disposition, err := f.machine.HandleOutcome(ctx, request, nil,
		apperrors.NewExecutor(apperrors.ExecutorAuthRequired, "two-factor challenge"))
	require.NoError(t, err)
	assert.Equal(t, DispositionRequiresManual, disposition)
	assert.Equal(t, entity.CancellationStatusRequiresManual, updated.Status)
}

func TestTimeoutWalksFallbackChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t, entity.MethodAutomation, entity.MethodManual)
	request = f.beginAttempt(t, request.Id)
	assert.Equal(t, 1, request.Attempts)

	updated, disposition, err := f.machine.HandleOutcome(ctx, request, nil,
		apperrors.NewExecutor(apperrors.ExecutorTimeout, "no answer"))
	require.NoError(t, err)
	assert.Equal(t, DispositionFallback, disposition)
	assert.Equal(t, entity.CancellationStatusPending, updated.Status)
	assert.Equal(t, entity.MethodAutomation, updated.Method)
	assert.Equal(t, []entity.CancellationMethod{entity.MethodManual}, updated.FallbackChain)
	assert.Equal(t, "timeout", updated.LastError.Code)
}

func TestProviderRejectedDoesNotAutoFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t, entity.MethodAutomation, entity.MethodManual)
	request = f.beginAttempt(t, request.Id)

	updated, disposition, err := f.machine.HandleOutcome(ctx, request, nil,
		apperrors.NewExecutor(apperrors.ExecutorProviderRejected, "account has an outstanding balance"))
	require.NoError(t, err)
	assert.Equal(t, DispositionFailed, disposition)
	assert.Equal(t, entity.CancellationStatusFailed, updated.Status)
	assert.Equal(t, entity.MethodApi, updated.Method, "method unchanged, chain not consumed")
}

func TestExhaustedChainFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t) // no fallback chain
	request = f.beginAttempt(t, request.Id)

	updated, disposition, err := f.machine.HandleOutcome(ctx, request, nil,
		apperrors.NewExecutor(apperrors.ExecutorNetworkError, "connection refused"))
	require.NoError(t, err)
	assert.Equal(t, DispositionFailed, disposition)
	assert.Equal(t, entity.CancellationStatusFailed, updated.Status)
}

func TestAttemptCeilingStopsAutoFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t, entity.MethodAutomation, entity.MethodManual)

	// burn through the attempt ceiling with timeouts
	var disposition Disposition
	for i := 0; i < 3; i++ {
		current := f.beginAttempt(t, request.Id)
		var err error
		request, disposition, err = f.machine.HandleOutcome(ctx, current, nil,
			apperrors.NewExecutor(apperrors.ExecutorTimeout, "no answer"))
		require.NoError(t, err)
	}
	assert.Equal(t, DispositionFailed, disposition)
	assert.Equal(t, entity.CancellationStatusFailed, request.Status)
	assert.Equal(t, 3, request.Attempts)
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t)
	processing := f.beginAttempt(t, request.Id)

	// owner cancels while the executor is still running
	cancelled, err := f.machine.CancelRequest(ctx, request.Id, "found a better plan")
	require.NoError(t, err)
	assert.Equal(t, entity.CancellationStatusCancelled, cancelled.Status)

	// the late success arrives and must be discarded
	final, disposition, err := f.machine.HandleOutcome(ctx, processing, &executor.Outcome{ConfirmationCode: "CNF-LATE"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DispositionDiscarded, disposition)
	assert.Equal(t, entity.CancellationStatusCancelled, final.Status)
	assert.Equal(t, entity.SubscriptionStatusActive, f.store.GetSubscription(f.sub.Id).Status,
		"discarded result must not cancel the subscription")
	assert.Contains(t, f.store.logActions(request.Id), "late_result_discarded")

	// no further transition out of cancelled
	_, err = f.machine.CancelRequest(ctx, request.Id, "again")
	assert.True(t, apperrors.IsConflict(err))
	_, err = f.machine.ConfirmManual(ctx, request.Id, ManualVerdict{WasSuccessful: true})
	assert.True(t, apperrors.IsConflict(err))
}

func TestConfirmManualSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t)
	processing := f.beginAttempt(t, request.Id)
	handedOff, _, err := f.machine.HandleOutcome(ctx, processing, &executor.Outcome{
		RequiresManual: true,
		Instructions:   "call the provider",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.CancellationStatusRequiresManual, handedOff.Status)

	effective, _ := time.Parse("2006-01-02", "2024-08-31")
	confirmed, err := f.machine.ConfirmManual(ctx, request.Id, ManualVerdict{
		WasSuccessful:    true,
		ConfirmationCode: "X",
		EffectiveDate:    &effective,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.CancellationStatusCompleted, confirmed.Status)
	assert.Equal(t, "X", confirmed.ConfirmationCode)
	assert.Equal(t, entity.SubscriptionStatusCancelled, f.store.GetSubscription(f.sub.Id).Status)
}

func TestConfirmManualFailureVerdict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t)
	processing := f.beginAttempt(t, request.Id)
	_, _, err := f.machine.HandleOutcome(ctx, processing, &executor.Outcome{RequiresManual: true}, nil)
	require.NoError(t, err)

	failed, err := f.machine.ConfirmManual(ctx, request.Id, ManualVerdict{
		WasSuccessful: false,
		Message:       "provider refused over the phone",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.CancellationStatusFailed, failed.Status)
	assert.Equal(t, entity.SubscriptionStatusActive, f.store.GetSubscription(f.sub.Id).Status)
}

func TestRetryCreatesLinkedRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t)
	processing := f.beginAttempt(t, request.Id)
	failed, _, err := f.machine.HandleOutcome(ctx, processing, nil,
		apperrors.NewExecutor(apperrors.ExecutorProviderRejected, "rejected"))
	require.NoError(t, err)

	retry, err := f.machine.Retry(ctx, failed.Id, RetryParams{ForceMethod: entity.MethodManual})
	require.NoError(t, err)
	assert.Equal(t, entity.CancellationStatusPending, retry.Status)
	assert.Equal(t, entity.MethodManual, retry.Method)
	assert.Equal(t, failed.OrchestrationId, retry.OrchestrationId, "retry stays inside the same orchestration")
	require.NotNil(t, retry.RetryLink)
	assert.Equal(t, failed.Id, retry.RetryLink.RetriedFromId)

	// the superseded request left the non-terminal set
	superseded, err := f.store.Get(ctx, failed.Id)
	require.NoError(t, err)
	assert.True(t, superseded.Status.IsTerminal())

	// and the new request is the single in-flight one
	_, err = f.machine.Initiate(ctx, f.sub, entity.MethodApi, nil, InitiateParams{})
	assert.True(t, apperrors.IsConflict(err))
}

func TestRetryCeilingAndEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t)
	var failed *entity.CancellationRequest
	for i := 0; i < 3; i++ {
		processing := f.beginAttempt(t, request.Id)
		var err error
		failed, _, err = f.machine.HandleOutcome(ctx, processing, nil,
			apperrors.NewExecutor(apperrors.ExecutorNetworkError, "down"))
		require.NoError(t, err)
		if i < 2 {
			// manual re-arm between attempts, there is no fallback chain
			retry, err := f.machine.Retry(ctx, failed.Id, RetryParams{})
			require.NoError(t, err)
			request = retry
		}
	}

	// ceiling reached, plain retry refused
	_, err := f.machine.Retry(ctx, failed.Id, RetryParams{})
	assert.True(t, apperrors.IsConflict(err))

	// escalation raises the ceiling and the priority
	escalated, err := f.machine.Retry(ctx, failed.Id, RetryParams{Escalate: true})
	require.NoError(t, err)
	assert.Equal(t, 5, escalated.MaxAttempts)
	assert.Equal(t, entity.PriorityHigh, escalated.Priority)
	assert.Equal(t, 3, escalated.Attempts, "attempt history carries over")
}

func TestSweepStaleProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t, entity.MethodAutomation)
	f.beginAttempt(t, request.Id)

	// not yet past the api deadline
	swept, err := f.machine.SweepStaleProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	f.clock.Advance(31 * time.Second)
	swept, err = f.machine.SweepStaleProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	// timeout is auto-retryable, the chain advanced instead of hard-failing
	stored, err := f.store.Get(ctx, request.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.CancellationStatusPending, stored.Status)
	assert.Equal(t, entity.MethodAutomation, stored.Method)
	assert.Equal(t, "timeout", stored.LastError.Code)
}

func TestEveryTransitionAppendsOneLogEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.initiate(t, entity.MethodManual)
	f.clock.Advance(2 * time.Second)
	processing := f.beginAttempt(t, request.Id)
	f.clock.Advance(3 * time.Second)
	_, _, err := f.machine.HandleOutcome(ctx, processing, nil,
		apperrors.NewExecutor(apperrors.ExecutorTimeout, "no answer"))
	require.NoError(t, err)

	assert.Equal(t, []string{"initiate", "dispatch", "fallback"}, f.store.logActions(request.Id))

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Equal(t, time.Duration(0), f.store.logs[0].SincePrevious)
	assert.Equal(t, 2*time.Second, f.store.logs[1].SincePrevious)
	assert.Equal(t, 3*time.Second, f.store.logs[2].SincePrevious)
}
