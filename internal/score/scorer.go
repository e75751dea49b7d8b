package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/persona/internal/model"
)

// Corpus size at which depth earns full points
const fullDepthItems = 50

// Scorer calculates the grounding index and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate scores how well the outcome's persona is grounded in the content
// it was built from. A degraded record scores 0.
func (s *Scorer) Calculate(outcome *model.Outcome) model.Grounding {
	diag := outcome.Diagnostics
	if diag == nil {
		diag = &model.Diagnostics{}
	}
	items := outcome.Posts + outcome.Comments

	var signals []model.Signal

	if outcome.Persona != nil && outcome.Persona.Degraded {
		signals = append(signals, model.Signal{
			Type:        model.SignalDegradedResponse,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("Model response unusable (stage: %s)", diag.FailedStage),
			Data:        map[string]any{"stage": diag.FailedStage},
		})
		_, depthSignal := s.calculateDepth(items)
		signals = append(signals, depthSignal)
		return model.Grounding{Index: 0, Confidence: "none", Signals: signals}
	}

	// 1. Claim coverage (0-50 points)
	coverageScore, coverageSignal := s.calculateCoverage(diag)
	signals = append(signals, coverageSignal)

	// 2. Citation precision (0-30 points)
	precisionScore, precisionSignal := s.calculatePrecision(diag)
	signals = append(signals, precisionSignal)

	// 3. Corpus depth (0-20 points)
	depthScore, depthSignal := s.calculateDepth(items)
	signals = append(signals, depthSignal)

	if diag.PromptTruncated {
		signals = append(signals, model.Signal{
			Type:        model.SignalTruncatedPrompt,
			Severity:    model.SeverityInfo,
			Description: "Content was cut to fit the prompt; older items were not seen",
			Data:        map[string]any{"prompt_chars": diag.PromptChars},
		})
	}

	total := coverageScore + precisionScore + depthScore

	return model.Grounding{
		Index:      total,
		Confidence: s.determineConfidence(total, items),
		Signals:    signals,
	}
}

// calculateCoverage scores the share of extracted attributes that kept at
// least one verified citation (0-50 points)
func (s *Scorer) calculateCoverage(diag *model.Diagnostics) (int, model.Signal) {
	if diag.Claims == 0 {
		return 0, model.Signal{
			Type:        model.SignalClaimCoverage,
			Severity:    model.SeverityCritical,
			Description: "No attributes extracted",
			Data:        map[string]any{"claims": 0},
		}
	}

	cited := diag.Claims - diag.UncitedClaims
	ratio := float64(cited) / float64(diag.Claims)
	score := int(math.Round(ratio * 50))

	severity := model.SeverityInfo
	if ratio < 0.25 {
		severity = model.SeverityCritical
	} else if ratio < 0.5 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalClaimCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d attributes cite real content", cited, diag.Claims),
		Data: map[string]any{
			"claims":  diag.Claims,
			"cited":   cited,
			"ratio":   ratio,
			"score":   score,
			"formula": "cited_claims / claims * 50",
		},
	}
}

// calculatePrecision scores the share of cited ids that resolved (0-30 points)
func (s *Scorer) calculatePrecision(diag *model.Diagnostics) (int, model.Signal) {
	if diag.AttemptedCites == 0 {
		return 0, model.Signal{
			Type:        model.SignalCitationPrecision,
			Severity:    model.SeverityWarning,
			Description: "Model cited no content",
			Data:        map[string]any{"attempted": 0},
		}
	}

	ratio := float64(diag.ResolvedCites) / float64(diag.AttemptedCites)
	score := int(math.Round(ratio * 30))

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 0.8 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalCitationPrecision,
		Severity:    severity,
		Description: fmt.Sprintf("Citations verified: %d/%d (%.0f%%)", diag.ResolvedCites, diag.AttemptedCites, ratio*100),
		Data: map[string]any{
			"attempted": diag.AttemptedCites,
			"resolved":  diag.ResolvedCites,
			"ratio":     ratio,
			"score":     score,
			"formula":   "resolved / attempted * 30",
		},
	}
}

// calculateDepth scores how much content the persona rests on (0-20 points)
func (s *Scorer) calculateDepth(items int) (int, model.Signal) {
	score := int(math.Min(float64(items)/fullDepthItems*20, 20))

	severity := model.SeverityInfo
	if items < 10 {
		severity = model.SeverityCritical
	} else if items < fullDepthItems {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalCorpusDepth,
		Severity:    severity,
		Description: fmt.Sprintf("Analyzed %d posts and comments", items),
		Data: map[string]any{
			"items":   items,
			"score":   score,
			"formula": fmt.Sprintf("min(items / %d * 20, 20)", fullDepthItems),
		},
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(score int, items int) string {
	if items < 10 {
		return "low"
	}

	if score >= 80 {
		return "high"
	} else if score >= 60 {
		return "medium"
	} else {
		return "low"
	}
}
