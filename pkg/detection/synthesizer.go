package detection

import (
	"math"
	"time"

	"subguard-be/internal/entity"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
)

// Change is one planned subscription write derived from a detection pass.
type Change struct {
	Kind         ChangeKind
	Subscription *entity.Subscription
}

// Synthesizer converts accepted detection results into a subscription
// change set. It is a stateless planner: callers supply the owner's
// existing subscriptions and persist the returned changes themselves.
type Synthesizer struct {
	now func() time.Time
}

func NewSynthesizer(now func() time.Time) *Synthesizer {
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{now: now}
}

// Plan upserts one subscription per recurring result, keyed by fingerprint
// (owner, normalized name, amount bucket). Subscriptions marked manual are
// never overwritten, manual authorship always wins over detection.
func (s *Synthesizer) Plan(userId uuid.UUID, results []*Result, existing []*entity.Subscription) []Change {
	type fingerprint struct {
		normalized string
		bucket     int
	}
	byFingerprint := make(map[fingerprint]*entity.Subscription, len(existing))
	for _, sub := range existing {
		byFingerprint[fingerprint{sub.NormalizedName, sub.AmountBucket}] = sub
	}

	var changes []Change
	for _, r := range results {
		if !r.IsSubscription {
			continue
		}

		lastBilling := r.LastDate
		nextBilling := r.NextDate

		current, found := byFingerprint[fingerprint{r.NormalizedName, r.AmountBucket}]
		if !found {
			changes = append(changes, Change{
				Kind: ChangeCreate,
				Subscription: &entity.Subscription{
					Id:             uuid.New(),
					UserId:         userId,
					ProviderName:   r.MerchantName,
					NormalizedName: r.NormalizedName,
					Amount:         r.AverageAmount,
					AmountBucket:   r.AmountBucket,
					Currency:       r.Currency,
					Frequency:      r.Frequency,
					Status:         entity.SubscriptionStatusActive,
					LastBillingAt:  &lastBilling,
					NextBillingAt:  &nextBilling,
					Confidence:     r.Confidence,
					CreatedAt:      s.now(),
					UpdatedAt:      s.now(),
				},
			})
			continue
		}

		if current.IsManual {
			continue
		}
		if !materiallyDiffers(current, r) {
			continue
		}

		updated := *current
		updated.Frequency = r.Frequency
		updated.Amount = r.AverageAmount
		updated.Confidence = r.Confidence
		updated.LastBillingAt = &lastBilling
		updated.NextBillingAt = &nextBilling
		updated.UpdatedAt = s.now()
		changes = append(changes, Change{Kind: ChangeUpdate, Subscription: &updated})
	}
	return changes
}

// materiallyDiffers decides whether a re-detection is worth persisting and
// notifying the owner about.
func materiallyDiffers(current *entity.Subscription, r *Result) bool {
	if current.Frequency != r.Frequency {
		return true
	}
	if math.Abs(current.Amount-r.AverageAmount) > 0.01 {
		return true
	}
	if math.Abs(current.Confidence-r.Confidence) > 0.05 {
		return true
	}
	if current.LastBillingAt == nil || !current.LastBillingAt.Equal(r.LastDate) {
		return true
	}
	return false
}
