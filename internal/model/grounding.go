package model

// Grounding is the transparent breakdown of how well a persona is supported
// by the content it cites
type Grounding struct {
	Index      int      `json:"index"`      // Overall grounding index (0-100)
	Confidence string   `json:"confidence"` // "none", "low", "medium", "high"
	Signals    []Signal `json:"signals"`    // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType     `json:"type"`           // Signal classification
	Severity    SignalSeverity `json:"severity"`       // info, warning, critical
	Description string         `json:"description"`    // Human-readable description
	Data        map[string]any `json:"data,omitempty"` // Scoring inputs and formula
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalClaimCoverage     SignalType = "claim_coverage"     // Attributes backed by a citation
	SignalCitationPrecision SignalType = "citation_precision" // Cited ids that resolved
	SignalCorpusDepth       SignalType = "corpus_depth"       // Posts and comments analyzed
	SignalDegradedResponse  SignalType = "degraded_response"  // Model output unusable
	SignalTruncatedPrompt   SignalType = "truncated_prompt"   // Content cut to fit the prompt
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
