package method

import (
	"fmt"
	"sort"

	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"
)

// Selection is the selector's verdict: the method to dispatch first and the
// ranked alternates to fall back to when it fails.
type Selection struct {
	Method        entity.CancellationMethod
	FallbackChain []entity.CancellationMethod
	Rationale     string
}

// Selector turns a capability assessment plus the owner's preference into a
// concrete execution plan. Stateless.
type Selector struct{}

func NewSelector() *Selector {
	return &Selector{}
}

// Select honors a forced preference when that method is available and
// otherwise ranks the available methods. A forced unavailable method is a
// validation error, never silently substituted.
func (s *Selector) Select(assessment *entity.CapabilityAssessment, preference entity.MethodPreference) (*Selection, error) {
	if preference != entity.PreferenceAuto {
		forced := entity.CancellationMethod(preference)
		if !assessment.Available(forced) {
			return nil, apperrors.NewValidation("method",
				fmt.Sprintf("method %q is not available for provider %q", forced, assessment.NormalizedProvider))
		}
		var chain []entity.CancellationMethod
		if forced != entity.MethodManual {
			// manual is already the floor, nothing ranks below it
			chain = s.rank(assessment, forced)
		}
		return &Selection{
			Method:        forced,
			FallbackChain: chain,
			Rationale:     "owner requested " + string(forced),
		}, nil
	}

	ranked := s.rank(assessment, "")
	if len(ranked) == 0 {
		// cannot happen with a well-formed assessment, manual is always on
		return nil, apperrors.NewValidation("method", "no cancellation method available")
	}
	return &Selection{
		Method:        ranked[0],
		FallbackChain: ranked[1:],
		Rationale:     s.rationale(assessment, ranked[0]),
	}, nil
}

// rank orders the available methods, excluding one already chosen. Automated
// methods come before manual, highest success rate first with expected
// duration breaking ties. An api call against a two-factor or hard provider
// tends to bounce on the provider side, so for those the api method drops
// below manual entirely.
func (s *Selector) rank(assessment *entity.CapabilityAssessment, exclude entity.CancellationMethod) []entity.CancellationMethod {
	var automated []entity.CancellationMethod
	for _, m := range []entity.CancellationMethod{entity.MethodApi, entity.MethodAutomation} {
		if m != exclude && assessment.Available(m) {
			automated = append(automated, m)
		}
	}

	sort.SliceStable(automated, func(i, j int) bool {
		return s.score(assessment, automated[i]) > s.score(assessment, automated[j])
	})

	var demoted []entity.CancellationMethod
	if assessment.RequiresTwoFactor || assessment.Difficulty == entity.DifficultyHard {
		kept := automated[:0]
		for _, m := range automated {
			if m == entity.MethodApi {
				demoted = append(demoted, m)
				continue
			}
			kept = append(kept, m)
		}
		automated = kept
	}

	if exclude != entity.MethodManual && assessment.Available(entity.MethodManual) {
		automated = append(automated, entity.MethodManual)
	}
	return append(automated, demoted...)
}

// score is higher-is-better. Success rate dominates, duration breaks ties.
func (s *Selector) score(assessment *entity.CapabilityAssessment, m entity.CancellationMethod) float64 {
	mc := assessment.Method(m)
	score := mc.SuccessRate

	// duration tiebreak, bounded well under the smallest rate step we store
	if mc.AvgDurationSeconds > 0 {
		score -= float64(mc.AvgDurationSeconds) * 1e-7
	}
	return score
}

func (s *Selector) rationale(assessment *entity.CapabilityAssessment, chosen entity.CancellationMethod) string {
	if chosen == entity.MethodManual {
		if assessment.Source == entity.CapabilitySourceDefault {
			return "provider unknown, manual instructions only"
		}
		return "no automated method available"
	}
	mc := assessment.Method(chosen)
	return fmt.Sprintf("%s ranked first (success rate %.0f%%)", chosen, mc.SuccessRate*100)
}
