package detection

import (
	"math"
	"sort"
	"time"

	"subguard-be/internal/config"
	"subguard-be/internal/entity"

	"github.com/google/uuid"
)

// Result is one recurrence candidate produced from a transaction cluster.
type Result struct {
	MerchantName   string
	NormalizedName string
	AmountBucket   int
	Currency       string
	Frequency      entity.BillingFrequency
	AverageAmount  float64
	IsSubscription bool
	Confidence     float64
	LastDate       time.Time
	NextDate       time.Time
	TransactionIds []uuid.UUID
}

// PatternMatcher groups one owner's transactions into recurrence candidates
// and classifies their billing frequency. Pure computation, no store access.
type PatternMatcher struct {
	cfg config.DetectionConfig
}

func NewPatternMatcher(cfg config.DetectionConfig) *PatternMatcher {
	return &PatternMatcher{cfg: cfg}
}

type cluster struct {
	merchant   string
	normalized string
	bucket     int
	currency   string
	members    []*entity.Transaction
}

// Detect runs the full pipeline: fingerprint clustering, gap analysis,
// frequency classification, confidence scoring. Input order is irrelevant.
// Pending transactions are skipped, their dates are not settled yet.
func (m *PatternMatcher) Detect(transactions []*entity.Transaction) []*Result {
	clusters := m.clusterByFingerprint(transactions)

	results := make([]*Result, 0, len(clusters))
	for _, c := range clusters {
		if r := m.classify(c); r != nil {
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results
}

func (m *PatternMatcher) clusterByFingerprint(transactions []*entity.Transaction) []*cluster {
	type key struct {
		normalized string
		bucket     int
	}
	byKey := make(map[key]*cluster)
	var order []key

	for _, t := range transactions {
		if t.Pending || t.MerchantName == "" {
			continue
		}
		normalized := NormalizeMerchant(t.MerchantName)
		if normalized == "" {
			continue
		}
		k := key{normalized: normalized, bucket: AmountBucket(t.Amount, m.cfg.AmountTolerance)}
		c, ok := byKey[k]
		if !ok {
			c = &cluster{
				merchant:   t.MerchantName,
				normalized: k.normalized,
				bucket:     k.bucket,
				currency:   t.Currency,
			}
			byKey[k] = c
			order = append(order, k)
		}
		c.members = append(c.members, t)
	}

	clusters := make([]*cluster, 0, len(order))
	for _, k := range order {
		clusters = append(clusters, byKey[k])
	}
	return clusters
}

// classify turns one cluster into a detection result, or nil when the
// cluster is too small to say anything. A single occurrence is never
// classified as recurring.
func (m *PatternMatcher) classify(c *cluster) *Result {
	if len(c.members) < 2 {
		return nil
	}

	members := make([]*entity.Transaction, len(c.members))
	copy(members, c.members)
	sort.Slice(members, func(i, j int) bool {
		return members[i].Date.Before(members[j].Date)
	})

	gaps := make([]float64, 0, len(members)-1)
	for i := 1; i < len(members); i++ {
		gaps = append(gaps, members[i].Date.Sub(members[i-1].Date).Hours()/24)
	}
	meanGap := mean(gaps)
	gapStdDev := stdDev(gaps, meanGap)

	frequency, inWindow := m.classifyGap(meanGap)

	confidence := m.confidence(len(members), meanGap, gapStdDev, inWindow)
	isSubscription := len(members) >= m.cfg.MinOccurrences && confidence > 0

	var total float64
	ids := make([]uuid.UUID, len(members))
	for i, t := range members {
		total += math.Abs(t.Amount)
		ids[i] = t.Id
	}
	last := members[len(members)-1].Date

	return &Result{
		MerchantName:   c.merchant,
		NormalizedName: c.normalized,
		AmountBucket:   c.bucket,
		Currency:       c.currency,
		Frequency:      frequency,
		AverageAmount:  total / float64(len(members)),
		IsSubscription: isSubscription,
		Confidence:     confidence,
		LastDate:       last,
		NextDate:       last.AddDate(0, 0, int(math.Round(meanGap))),
		TransactionIds: ids,
	}
}

// classifyGap maps a mean day-gap onto a billing frequency. Outside every
// window the cluster defaults to monthly and the caller applies a
// confidence penalty.
func (m *PatternMatcher) classifyGap(meanGap float64) (entity.BillingFrequency, bool) {
	cfg := m.cfg
	switch {
	case meanGap >= cfg.WeeklyMinGapDays && meanGap <= cfg.WeeklyMaxGapDays:
		return entity.FrequencyWeekly, true
	case meanGap >= cfg.MonthlyMinGapDays && meanGap <= cfg.MonthlyMaxGapDays:
		return entity.FrequencyMonthly, true
	case meanGap >= cfg.QuarterlyMinGapDays && meanGap <= cfg.QuarterlyMaxGapDays:
		return entity.FrequencyQuarterly, true
	case meanGap >= cfg.YearlyMinGapDays && meanGap <= cfg.YearlyMaxGapDays:
		return entity.FrequencyYearly, true
	default:
		return entity.FrequencyMonthly, false
	}
}

// confidence combines an occurrence score with a gap-variance tightness
// score. Holding variance fixed, more occurrences never decrease it.
func (m *PatternMatcher) confidence(occurrences int, meanGap, gapStdDev float64, inWindow bool) float64 {
	occurrenceScore := 0.3 + 0.2*float64(occurrences)
	if occurrenceScore > 1 {
		occurrenceScore = 1
	}

	tightness := 1.0
	if meanGap > 0 {
		tightness = 1 - 2*(gapStdDev/meanGap)
		if tightness < 0.1 {
			tightness = 0.1
		}
	}

	confidence := occurrenceScore * tightness
	if !inWindow {
		confidence *= m.cfg.OutOfWindowPenalty
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
