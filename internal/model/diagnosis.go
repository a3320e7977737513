package model

// ResultSource indicates where a diagnosis answer came from.
type ResultSource string

const (
	// SourceKnowledgeBase marks answers served from the curated fault-code catalog.
	SourceKnowledgeBase ResultSource = "knowledge_base"
	// SourceAIProvider marks answers produced by an external AI provider.
	SourceAIProvider ResultSource = "ai_provider"
)

// DiagnosisQuery is a single user-submitted diagnosis request. It is created
// per request and discarded after resolution.
type DiagnosisQuery struct {
	RawInput    string
	Category    string
	RequesterID string
}

// DiagnosisResult is the single normalized answer returned to the caller.
// Severity is nil for AI-sourced answers, which carry only free text.
type DiagnosisResult struct {
	Severity *Severity
	Source   ResultSource
	Brand    string
	Problem  string
	Fix      string
	Cost     int64
}

// Nameplate holds the structured fields extracted from a machine nameplate
// photo. Fields the provider could not determine are "N/A", never empty.
type Nameplate struct {
	Brand  string `json:"brand"`
	Model  string `json:"model"`
	Serial string `json:"serial"`
}
