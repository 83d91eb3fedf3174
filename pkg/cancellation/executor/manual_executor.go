package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"subguard-be/internal/entity"
)

// ManualExecutor never cancels anything itself. It prepares step-by-step
// instructions and hands the request to the owner as requires_manual.
type ManualExecutor struct{}

func NewManualExecutor() *ManualExecutor {
	return &ManualExecutor{}
}

func (e *ManualExecutor) Method() entity.CancellationMethod {
	return entity.MethodManual
}

func (e *ManualExecutor) Execute(ctx context.Context, input *Input) (*Outcome, error) {
	return &Outcome{
		RequiresManual: true,
		Instructions:   buildInstructions(input),
	}, nil
}

func buildInstructions(input *Input) string {
	provider := input.Subscription.ProviderName
	assessment := input.Assessment

	var b strings.Builder
	fmt.Fprintf(&b, "To cancel %s yourself:\n", provider)
	fmt.Fprintf(&b, "1. Log in to your %s account and open the subscription or billing settings.\n", provider)
	step := 2
	if assessment.RequiresTwoFactor {
		fmt.Fprintf(&b, "%d. Keep your second-factor device at hand, the provider will challenge you.\n", step)
		step++
	}
	fmt.Fprintf(&b, "%d. Follow the cancellation flow until the provider shows a confirmation.\n", step)
	step++
	if assessment.HasRetentionOffers {
		fmt.Fprintf(&b, "%d. Expect discount or pause offers before the final step, decline them to finish.\n", step)
		step++
	}
	fmt.Fprintf(&b, "%d. Copy the confirmation code and report it back here to close this request.\n", step)

	if seconds := assessment.Method(entity.MethodManual).AvgDurationSeconds; seconds > 0 {
		fmt.Fprintf(&b, "\nTypical time to complete: about %s.", humanDuration(seconds))
	}
	if assessment.Difficulty == entity.DifficultyHard {
		b.WriteString("\nThis provider is known to make cancellation difficult, a phone call may be required.")
	}
	return b.String()
}

func humanDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
