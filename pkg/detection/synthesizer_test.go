package detection

import (
	"testing"
	"time"

	"subguard-be/internal/entity"

	"github.com/google/uuid"
)

func fixedNow() time.Time {
	t, _ := time.Parse("2006-01-02", "2024-08-01")
	return t
}

func monthlyResult(merchant string, amount, confidence float64) *Result {
	last, _ := time.Parse("2006-01-02", "2024-07-15")
	return &Result{
		MerchantName:   merchant,
		NormalizedName: NormalizeMerchant(merchant),
		AmountBucket:   AmountBucket(amount, 0.05),
		Currency:       "USD",
		Frequency:      entity.FrequencyMonthly,
		AverageAmount:  amount,
		IsSubscription: true,
		Confidence:     confidence,
		LastDate:       last,
		NextDate:       last.AddDate(0, 0, 30),
	}
}

func TestPlanCreatesNewSubscription(t *testing.T) {
	s := NewSynthesizer(fixedNow)
	userId := uuid.New()

	changes := s.Plan(userId, []*Result{monthlyResult("Netflix", 15.99, 0.87)}, nil)

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	c := changes[0]
	if c.Kind != ChangeCreate {
		t.Errorf("Kind = %s, want create", c.Kind)
	}
	sub := c.Subscription
	if sub.UserId != userId {
		t.Error("owner not propagated")
	}
	if sub.Status != entity.SubscriptionStatusActive {
		t.Errorf("Status = %s, want active", sub.Status)
	}
	if sub.NormalizedName != "netflix" {
		t.Errorf("NormalizedName = %q", sub.NormalizedName)
	}
	if sub.NextBillingAt == nil || sub.LastBillingAt == nil {
		t.Error("billing dates missing")
	}
}

func TestPlanSkipsNonRecurringResults(t *testing.T) {
	s := NewSynthesizer(fixedNow)
	r := monthlyResult("Corner Cafe", 4.50, 0.2)
	r.IsSubscription = false

	changes := s.Plan(uuid.New(), []*Result{r}, nil)
	if len(changes) != 0 {
		t.Fatalf("non-recurring result produced %d changes", len(changes))
	}
}

func TestPlanNeverTouchesManualSubscriptions(t *testing.T) {
	s := NewSynthesizer(fixedNow)
	userId := uuid.New()
	r := monthlyResult("Netflix", 15.99, 0.87)

	existing := []*entity.Subscription{{
		Id:             uuid.New(),
		UserId:         userId,
		NormalizedName: r.NormalizedName,
		AmountBucket:   r.AmountBucket,
		Amount:         12.99, // stale, would normally trigger an update
		Frequency:      entity.FrequencyMonthly,
		Status:         entity.SubscriptionStatusActive,
		IsManual:       true,
	}}

	changes := s.Plan(userId, []*Result{r}, existing)
	if len(changes) != 0 {
		t.Fatalf("manual subscription was modified: %d changes", len(changes))
	}
}

func TestPlanUpdatesOnMaterialChangeOnly(t *testing.T) {
	s := NewSynthesizer(fixedNow)
	userId := uuid.New()
	r := monthlyResult("Netflix", 15.99, 0.87)
	lastBilling := r.LastDate
	nextBilling := r.NextDate

	fresh := &entity.Subscription{
		Id:             uuid.New(),
		UserId:         userId,
		NormalizedName: r.NormalizedName,
		AmountBucket:   r.AmountBucket,
		Amount:         15.99,
		Frequency:      entity.FrequencyMonthly,
		Confidence:     0.87,
		Status:         entity.SubscriptionStatusActive,
		LastBillingAt:  &lastBilling,
		NextBillingAt:  &nextBilling,
	}

	changes := s.Plan(userId, []*Result{r}, []*entity.Subscription{fresh})
	if len(changes) != 0 {
		t.Fatalf("unchanged detection produced %d changes", len(changes))
	}

	stale := *fresh
	stale.Amount = 13.99
	changes = s.Plan(userId, []*Result{r}, []*entity.Subscription{&stale})
	if len(changes) != 1 {
		t.Fatalf("price change produced %d changes, want 1", len(changes))
	}
	if changes[0].Kind != ChangeUpdate {
		t.Errorf("Kind = %s, want update", changes[0].Kind)
	}
	if changes[0].Subscription.Amount != 15.99 {
		t.Errorf("Amount = %.2f, want 15.99", changes[0].Subscription.Amount)
	}
	if changes[0].Subscription.Id != stale.Id {
		t.Error("update must keep the existing subscription id")
	}
}
