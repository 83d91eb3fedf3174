package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"
	"subguard-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
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

func executorInput(apiEndpoint string) *Input {
	return &Input{
		Request: &entity.CancellationRequest{Id: uuid.New()},
		Subscription: &entity.Subscription{
			Id:             uuid.New(),
			ProviderName:   "Netflix",
			NormalizedName: "netflix",
			Amount:         15.99,
			Currency:       "USD",
		},
		Assessment: &entity.CapabilityAssessment{
			NormalizedProvider: "netflix",
			ApiEndpoint:        apiEndpoint,
			Methods: map[entity.CancellationMethod]entity.MethodCapability{
				entity.MethodApi:    {Available: apiEndpoint != ""},
				entity.MethodManual: {Available: true, AvgDurationSeconds: 900},
			},
		},
	}
}

func TestApiExecutorSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "netflix", payload["provider"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"confirmation_code": "CNF-123",
			"effective_date":    "2024-08-31",
		})
	}))
	defer server.Close()

	e := NewApiExecutor(5*time.Second, nopLogger{})
	outcome, err := e.Execute(context.Background(), executorInput(server.URL))

	assert.NoError(t, err)
	assert.Equal(t, "CNF-123", outcome.ConfirmationCode)
	assert.NotNil(t, outcome.EffectiveDate)
	assert.False(t, outcome.RequiresManual)
}

func TestApiExecutorAuthRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	e := NewApiExecutor(5*time.Second, nopLogger{})
	_, err := e.Execute(context.Background(), executorInput(server.URL))

	execErr, ok := apperrors.AsExecutor(err)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ExecutorAuthRequired, execErr.Code)
	assert.False(t, execErr.IsAutoRetryable())
}

func TestApiExecutorProviderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	e := NewApiExecutor(5*time.Second, nopLogger{})
	_, err := e.Execute(context.Background(), executorInput(server.URL))

	execErr, ok := apperrors.AsExecutor(err)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ExecutorProviderRejected, execErr.Code)
}

func TestApiExecutorTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	e := NewApiExecutor(50*time.Millisecond, nopLogger{})
	_, err := e.Execute(context.Background(), executorInput(server.URL))

	execErr, ok := apperrors.AsExecutor(err)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ExecutorTimeout, execErr.Code)
	assert.True(t, execErr.IsAutoRetryable())
}

func TestApiExecutorNetworkError(t *testing.T) {
	e := NewApiExecutor(time.Second, nopLogger{})
	_, err := e.Execute(context.Background(), executorInput("http://127.0.0.1:1"))

	execErr, ok := apperrors.AsExecutor(err)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ExecutorNetworkError, execErr.Code)
	assert.True(t, execErr.IsAutoRetryable())
}

func TestAutomationExecutorTwoFactorRoutesToAuthRequired(t *testing.T) {
	input := executorInput("")
	input.Assessment.AutomationProfile = "netflix-web-v2"
	input.Assessment.RequiresTwoFactor = true

	e := NewAutomationExecutor(nil, time.Second, nopLogger{})
	_, err := e.Execute(context.Background(), input)

	execErr, ok := apperrors.AsExecutor(err)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ExecutorAuthRequired, execErr.Code)
}

type stubRunner struct {
	outcome *Outcome
	err     error
}

func (s *stubRunner) RunProfile(ctx context.Context, profile string, input *Input) (*Outcome, error) {
	return s.outcome, s.err
}

func TestAutomationExecutorPassesThroughRunnerErrors(t *testing.T) {
	input := executorInput("")
	input.Assessment.AutomationProfile = "netflix-web-v2"

	rejected := apperrors.NewExecutor(apperrors.ExecutorProviderRejected, "flow could not find the cancel button")
	e := NewAutomationExecutor(&stubRunner{err: rejected}, time.Second, nopLogger{})

	_, err := e.Execute(context.Background(), input)
	execErr, ok := apperrors.AsExecutor(err)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ExecutorProviderRejected, execErr.Code)
}

func TestManualExecutorBuildsInstructions(t *testing.T) {
	input := executorInput("")
	input.Assessment.RequiresTwoFactor = true
	input.Assessment.HasRetentionOffers = true
	input.Assessment.Difficulty = entity.DifficultyHard

	e := NewManualExecutor()
	outcome, err := e.Execute(context.Background(), input)

	assert.NoError(t, err)
	assert.True(t, outcome.RequiresManual)
	assert.True(t, strings.Contains(outcome.Instructions, "Netflix"))
	assert.True(t, strings.Contains(outcome.Instructions, "second-factor"))
	assert.True(t, strings.Contains(outcome.Instructions, "offers"))
	assert.True(t, strings.Contains(outcome.Instructions, "difficult"))
}

func TestRegistryResolvesByMethod(t *testing.T) {
	registry := NewRegistry(NewManualExecutor(), NewApiExecutor(time.Second, nopLogger{}))

	e, ok := registry.For(entity.MethodManual)
	assert.True(t, ok)
	assert.Equal(t, entity.MethodManual, e.Method())

	_, ok = registry.For(entity.MethodAutomation)
	assert.False(t, ok)
}
