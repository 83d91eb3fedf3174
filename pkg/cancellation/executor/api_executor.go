package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"
	"subguard-be/internal/pkg/logger"
)

// ApiExecutor cancels through a provider's cancellation endpoint.
type ApiExecutor struct {
	client  *http.Client
	timeout time.Duration
	logger  logger.ILogger
}

func NewApiExecutor(timeout time.Duration, log logger.ILogger) *ApiExecutor {
	return &ApiExecutor{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  log,
	}
}

func (e *ApiExecutor) Method() entity.CancellationMethod {
	return entity.MethodApi
}

type apiCancelPayload struct {
	SubscriptionRef string  `json:"subscription_ref"`
	Provider        string  `json:"provider"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	RequestedAt     string  `json:"requested_at"`
}

type apiCancelResponse struct {
	ConfirmationCode string   `json:"confirmation_code"`
	EffectiveDate    string   `json:"effective_date"`
	RefundAmount     *float64 `json:"refund_amount"`
}

func (e *ApiExecutor) Execute(ctx context.Context, input *Input) (*Outcome, error) {
	url := input.Assessment.ApiEndpoint
	if url == "" {
		return nil, apperrors.NewExecutor(apperrors.ExecutorProviderRejected, "provider has no cancellation endpoint")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload := apiCancelPayload{
		SubscriptionRef: input.Subscription.Id.String(),
		Provider:        input.Subscription.NormalizedName,
		Amount:          input.Subscription.Amount,
		Currency:        input.Subscription.Currency,
		RequestedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewExecutor(apperrors.ExecutorTimeout,
				fmt.Sprintf("provider API did not answer within %s", e.timeout))
		}
		return nil, apperrors.NewExecutor(apperrors.ExecutorNetworkError, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.NewExecutor(apperrors.ExecutorAuthRequired,
			"provider requires the owner to authenticate")
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		e.logger.Warn("ApiExecutor", "provider rejected cancellation", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(raw),
		})
		return nil, apperrors.NewExecutor(apperrors.ExecutorProviderRejected,
			fmt.Sprintf("provider answered %d", resp.StatusCode))
	}

	var parsed apiCancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewExecutor(apperrors.ExecutorProviderRejected,
			"provider answered success with an unreadable body")
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
