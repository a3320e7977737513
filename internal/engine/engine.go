// Package engine implements the diagnostic resolution engine: knowledge base
// first, AI provider fallback second.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/masanjalab/doctor-mitambo/internal/common"
	"github.com/masanjalab/doctor-mitambo/internal/kb"
	"github.com/masanjalab/doctor-mitambo/internal/model"
	"github.com/masanjalab/doctor-mitambo/internal/provider"
)

// Router is the slice of the provider registry the engine depends on.
type Router interface {
	Route(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResult, error)
}

// Config holds the resolution engine settings.
type Config struct {
	// Language is the language diagnoses are answered in.
	Language string
	// FlatRate is the token cost of an AI-sourced diagnosis. Knowledge base
	// answers charge the catalog entry's own cost.
	FlatRate int64
}

// Engine resolves diagnosis queries. The knowledge base path is deterministic
// and free of network calls; everything else goes through the router.
type Engine struct {
	base     *kb.Base
	router   Router
	logger   *slog.Logger
	language string
	flatRate int64
}

// New creates a resolution engine.
func New(base *kb.Base, router Router, cfg Config, logger *slog.Logger) *Engine {
	language := cfg.Language
	if language == "" {
		language = "Swahili"
	}

	flatRate := cfg.FlatRate
	if flatRate <= 0 {
		flatRate = 5
	}

	return &Engine{
		base:     base,
		router:   router,
		logger:   logger,
		language: language,
		flatRate: flatRate,
	}
}

// ProspectiveCost returns what a query would charge if it succeeded: the
// catalog cost for a known code, the flat AI rate otherwise. The gate uses
// this for its funds pre-check before any network call happens.
func (e *Engine) ProspectiveCost(rawInput string) int64 {
	if entry, ok := e.base.Lookup(rawInput); ok {
		return entry.Cost
	}
	return e.flatRate
}

// Resolve answers a diagnosis query. A knowledge base hit is returned
// immediately with the entry's structured fields; otherwise the query is
// framed for the configured expert role and routed to an AI provider, whose
// raw answer becomes the fix text with no structured severity.
func (e *Engine) Resolve(ctx context.Context, query model.DiagnosisQuery) (model.DiagnosisResult, error) {
	if entry, ok := e.base.Lookup(query.RawInput); ok {
		e.logger.Info("diagnosis resolved from knowledge base",
			"code", entry.Code,
			"brand", entry.Brand,
			"severity", entry.Severity)

		severity := entry.Severity
		return model.DiagnosisResult{
			Source:   model.SourceKnowledgeBase,
			Brand:    entry.Brand,
			Problem:  entry.Problem,
			Fix:      entry.Fix,
			Severity: &severity,
			Cost:     entry.Cost,
		}, nil
	}

	if strings.TrimSpace(query.RawInput) == "" {
		return model.DiagnosisResult{}, common.ErrEmptyQuery
	}

	result, err := e.router.Route(ctx, provider.CompletionRequest{
		System:   e.systemPrompt(),
		UserText: e.buildPrompt(query),
	})
	if err != nil {
		return model.DiagnosisResult{}, err
	}

	e.logger.Info("diagnosis resolved by AI provider",
		"category", query.Category,
		"answer_length", len(result.Text))

	return model.DiagnosisResult{
		Source: model.SourceAIProvider,
		Fix:    result.Text,
		Cost:   e.flatRate,
	}, nil
}

// systemPrompt frames the provider as a heavy-machinery expert answering in
// the configured language.
func (e *Engine) systemPrompt() string {
	return fmt.Sprintf("You are an expert mechanic for heavy construction machinery "+
		"(CAT, Komatsu, Volvo). Answer in %s, clearly and briefly, with concrete "+
		"repair steps a field technician can follow.", e.language)
}

// buildPrompt creates the user prompt for a free-text diagnosis.
func (e *Engine) buildPrompt(query model.DiagnosisQuery) string {
	var b strings.Builder
	if query.Category != "" {
		fmt.Fprintf(&b, "Equipment category: %s\n\n", query.Category)
	}
	fmt.Fprintf(&b, "Fault code or symptoms reported by the operator:\n%s", strings.TrimSpace(query.RawInput))
	return b.String()
}
