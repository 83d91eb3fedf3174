package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"
	"subguard-be/internal/pkg/logger"
)

// AutomationRunner drives a named headless-browser profile against a
// provider's account pages.
type AutomationRunner interface {
	RunProfile(ctx context.Context, profile string, input *Input) (*Outcome, error)
}

// AutomationExecutor cancels by replaying a scripted web flow through the
// automation runner service.
type AutomationExecutor struct {
	runner  AutomationRunner
	timeout time.Duration
	logger  logger.ILogger
}

func NewAutomationExecutor(runner AutomationRunner, timeout time.Duration, log logger.ILogger) *AutomationExecutor {
	return &AutomationExecutor{runner: runner, timeout: timeout, logger: log}
}

func (e *AutomationExecutor) Method() entity.CancellationMethod {
	return entity.MethodAutomation
}

func (e *AutomationExecutor) Execute(ctx context.Context, input *Input) (*Outcome, error) {
	profile := input.Assessment.AutomationProfile
	if profile == "" {
		return nil, apperrors.NewExecutor(apperrors.ExecutorProviderRejected, "provider has no automation profile")
	}
	if input.Assessment.RequiresTwoFactor {
		// a headless session cannot answer the owner's second factor
		return nil, apperrors.NewExecutor(apperrors.ExecutorAuthRequired, "provider enforces two-factor login")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	outcome, err := e.runner.RunProfile(ctx, profile, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewExecutor(apperrors.ExecutorTimeout,
				fmt.Sprintf("automation flow %q exceeded %s", profile, e.timeout))
		}
		var execErr *apperrors.ExecutorError
		if errors.As(err, &execErr) {
			return nil, execErr
		}
		return nil, apperrors.NewExecutor(apperrors.ExecutorNetworkError, err.Error())
	}
	return outcome, nil
}

// HTTPAutomationRunner submits profile runs to the automation service over
// its blocking run endpoint.
type HTTPAutomationRunner struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAutomationRunner(baseURL string) *HTTPAutomationRunner {
	return &HTTPAutomationRunner{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type runProfileRequest struct {
	Profile         string `json:"profile"`
	SubscriptionRef string `json:"subscription_ref"`
	Provider        string `json:"provider"`
}

type runProfileResponse struct {
	Succeeded        bool     `json:"succeeded"`
	ConfirmationCode string   `json:"confirmation_code"`
	EffectiveDate    string   `json:"effective_date"`
	RefundAmount     *float64 `json:"refund_amount"`
	FailureReason    string   `json:"failure_reason"`
}

func (r *HTTPAutomationRunner) RunProfile(ctx context.Context, profile string, input *Input) (*Outcome, error) {
	body, err := json.Marshal(runProfileRequest{
		Profile:         profile,
		SubscriptionRef: input.Subscription.Id.String(),
		Provider:        input.Subscription.NormalizedName,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/runs", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("automation service answered %d", resp.StatusCode)
	}

	var parsed runProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if !parsed.Succeeded {
		return nil, apperrors.NewExecutor(apperrors.ExecutorProviderRejected, parsed.FailureReason)
	}

	outcome := &Outcome{
		ConfirmationCode: parsed.ConfirmationCode,
		RefundAmount:     parsed.RefundAmount,
	}
	if parsed.EffectiveDate != "" {
		if d, err := time.Parse("2006-01-02", parsed.EffectiveDate); err == nil {
			outcome.EffectiveDate = &d
		}
	}
	return outcome, nil
}
