package detection

import (
	"testing"
	"time"

	"subguard-be/internal/config"
	"subguard-be/internal/entity"

	"github.com/google/uuid"
)

func testConfig() config.DetectionConfig {
	return config.DetectionConfig{
		MinOccurrences:      2,
		AmountTolerance:     0.05,
		WeeklyMinGapDays:    6,
		WeeklyMaxGapDays:    8,
		MonthlyMinGapDays:   25,
		MonthlyMaxGapDays:   35,
		QuarterlyMinGapDays: 85,
		QuarterlyMaxGapDays: 95,
		YearlyMinGapDays:    350,
		YearlyMaxGapDays:    375,
		OutOfWindowPenalty:  0.6,
	}
}

func tx(userId uuid.UUID, merchant string, amount float64, date string) *entity.Transaction {
	d, _ := time.Parse("2006-01-02", date)
	return &entity.Transaction{
		Id:           uuid.New(),
		UserId:       userId,
		MerchantName: merchant,
		Amount:       amount,
		Currency:     "USD",
		Date:         d,
	}
}

func TestDetectNetflixMonthly(t *testing.T) {
	userId := uuid.New()
	matcher := NewPatternMatcher(testConfig())

	results := matcher.Detect([]*entity.Transaction{
		tx(userId, "Netflix", -15.99, "2024-05-15"),
		tx(userId, "Netflix", -15.99, "2024-06-15"),
		tx(userId, "Netflix", -15.99, "2024-07-15"),
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Frequency != entity.FrequencyMonthly {
		t.Errorf("Frequency = %s, want monthly", r.Frequency)
	}
	if !r.IsSubscription {
		t.Error("IsSubscription = false, want true")
	}
	if r.Confidence < 0.7 {
		t.Errorf("Confidence = %.3f, want >= 0.7", r.Confidence)
	}
	if len(r.TransactionIds) != 3 {
		t.Errorf("TransactionIds = %d, want 3", len(r.TransactionIds))
	}
	wantNext, _ := time.Parse("2006-01-02", "2024-08-14")
	if !r.NextDate.Equal(wantNext) && !r.NextDate.Equal(wantNext.AddDate(0, 0, 1)) {
		t.Errorf("NextDate = %s, want around %s", r.NextDate.Format("2006-01-02"), wantNext.Format("2006-01-02"))
	}
}

func TestDetectFrequencyWindows(t *testing.T) {
	tests := []struct {
		name     string
		dates    []string
		want     entity.BillingFrequency
		inWindow bool
	}{
		{
			name:     "weekly",
			dates:    []string{"2024-06-01", "2024-06-08", "2024-06-15", "2024-06-22"},
			want:     entity.FrequencyWeekly,
			inWindow: true,
		},
		{
			name:     "monthly",
			dates:    []string{"2024-04-10", "2024-05-10", "2024-06-10"},
			want:     entity.FrequencyMonthly,
			inWindow: true,
		},
		{
			name:     "quarterly",
			dates:    []string{"2024-01-02", "2024-04-01", "2024-06-30"},
			want:     entity.FrequencyQuarterly,
			inWindow: true,
		},
		{
			name:     "yearly",
			dates:    []string{"2022-03-01", "2023-03-01", "2024-02-29"},
			want:     entity.FrequencyYearly,
			inWindow: true,
		},
		{
			name:     "outside every window defaults to monthly",
			dates:    []string{"2024-01-01", "2024-01-16", "2024-01-31"},
			want:     entity.FrequencyMonthly,
			inWindow: false,
		},
	}

	userId := uuid.New()
	matcher := NewPatternMatcher(testConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txs []*entity.Transaction
			for _, d := range tt.dates {
				txs = append(txs, tx(userId, "Acme Service", -9.99, d))
			}
			results := matcher.Detect(txs)
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].Frequency != tt.want {
				t.Errorf("Frequency = %s, want %s", results[0].Frequency, tt.want)
			}
			// reference confidence for the same cluster shape inside a window
			if !tt.inWindow {
				inWindowConf := 0.3 + 0.2*float64(len(tt.dates))
				if inWindowConf > 1 {
					inWindowConf = 1
				}
				if results[0].Confidence >= inWindowConf {
					t.Errorf("out-of-window confidence %.3f not reduced below %.3f", results[0].Confidence, inWindowConf)
				}
			}
		})
	}
}

func TestSingleTransactionNeverRecurring(t *testing.T) {
	userId := uuid.New()
	matcher := NewPatternMatcher(testConfig())

	results := matcher.Detect([]*entity.Transaction{
		tx(userId, "One Off Store", -42.00, "2024-06-01"),
	})

	if len(results) != 0 {
		t.Fatalf("single transaction produced %d results, want 0", len(results))
	}
}

func TestPendingTransactionsIgnored(t *testing.T) {
	userId := uuid.New()
	matcher := NewPatternMatcher(testConfig())

	pending := tx(userId, "Spotify", -9.99, "2024-07-01")
	pending.Pending = true

	results := matcher.Detect([]*entity.Transaction{
		tx(userId, "Spotify", -9.99, "2024-05-01"),
		tx(userId, "Spotify", -9.99, "2024-06-01"),
		pending,
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].TransactionIds) != 2 {
		t.Errorf("pending transaction was clustered: got %d members, want 2", len(results[0].TransactionIds))
	}
}

func TestConfidenceMonotonicInOccurrences(t *testing.T) {
	userId := uuid.New()
	matcher := NewPatternMatcher(testConfig())

	// same zero gap-variance, increasing occurrence counts
	base, _ := time.Parse("2006-01-02", "2023-01-01")
	var prev float64
	for n := 2; n <= 8; n++ {
		var txs []*entity.Transaction
		for i := 0; i < n; i++ {
			txs = append(txs, &entity.Transaction{
				Id:           uuid.New(),
				UserId:       userId,
				MerchantName: "Gym Plus",
				Amount:       -30,
				Currency:     "USD",
				Date:         base.AddDate(0, 0, 30*i),
			})
		}
		results := matcher.Detect(txs)
		if len(results) != 1 {
			t.Fatalf("n=%d: expected 1 result, got %d", n, len(results))
		}
		if results[0].Confidence < prev {
			t.Errorf("n=%d: confidence %.3f dropped below %.3f", n, results[0].Confidence, prev)
		}
		prev = results[0].Confidence
	}
}

func TestAmountBucketSeparatesDistinctPlans(t *testing.T) {
	userId := uuid.New()
	matcher := NewPatternMatcher(testConfig())

	// same merchant, clearly different plan amounts: two clusters
	results := matcher.Detect([]*entity.Transaction{
		tx(userId, "StreamCo", -9.99, "2024-04-01"),
		tx(userId, "StreamCo", -9.99, "2024-05-01"),
		tx(userId, "StreamCo", -19.99, "2024-04-15"),
		tx(userId, "StreamCo", -19.99, "2024-05-15"),
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 clusters for distinct amounts, got %d", len(results))
	}
}

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NETFLIX.COM", "netflix"},
		{"Netflix Inc", "netflix"},
		{"SPOTIFY *1234", "spotify"},
		{"  Hulu, LLC  ", "hulu"},
		{"7-Eleven 22931", "7 eleven"},
	}
	for _, tt := range tests {
		if got := NormalizeMerchant(tt.in); got != tt.want {
			t.Errorf("NormalizeMerchant(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
