// Package continuation decides whether freshly written text picks up one of
// the writer's recent entries.
package continuation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jacobB1290/JwebAPP-sub000/internal/llm"
)

// MaxCandidates is how many recent entries are offered to the model.
const MaxCandidates = 5

// Threshold is the confidence a match has to exceed to be accepted.
const Threshold = 0.6

// Candidate is a recent entry summarised by its first human turn.
type Candidate struct {
	EntryID string
	Title   string
	Excerpt string
	Updated time.Time
}

// Decision is the matcher's verdict. The zero value means "not a continuation".
type Decision struct {
	IsContinuation bool
	EntryID        string
	Confidence     float64
}

// Completer is the slice of the gateway the matcher needs.
type Completer interface {
	Complete(ctx context.Context, system string, turns []llm.Turn, model string) (string, error)
}

// Matcher asks the model whether text continues a recent entry.
type Matcher struct {
	llm   Completer
	model string
	log   logrus.FieldLogger
}

// New builds a Matcher. model may be empty to use the gateway default.
func New(completer Completer, model string, logger logrus.FieldLogger) *Matcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Matcher{llm: completer, model: model, log: logger.WithField("component", "continuation")}
}

type verdict struct {
	IsContinuation bool    `json:"is_continuation"`
	EntryID        string  `json:"entry_id"`
	Confidence     float64 `json:"confidence"`
}

// Match never fails: gateway errors and unreadable replies both yield the
// zero Decision.
func (m *Matcher) Match(ctx context.Context, text string, recent []Candidate, memo string) Decision {
	if len(recent) == 0 || text == "" {
		return Decision{}
	}
	if len(recent) > MaxCandidates {
		recent = recent[:MaxCandidates]
	}

	offered := make(map[string]bool, len(recent))
	candidates := make([]llm.ContinuationCandidate, 0, len(recent))
	for _, c := range recent {
		offered[c.EntryID] = true
		candidates = append(candidates, llm.ContinuationCandidate{
			ID:      c.EntryID,
			Title:   c.Title,
			Excerpt: c.Excerpt,
			Updated: c.Updated,
		})
	}

	system, turns := llm.BuildContinuationPrompt(text, candidates, memo)
	raw, err := m.llm.Complete(ctx, system, turns, m.model)
	if err != nil {
		m.log.WithError(err).Warn("continuation check failed; treating as new entry")
		return Decision{}
	}

	var v verdict
	if err := llm.DecodeJSON(raw, &v); err != nil {
		m.log.WithError(err).Debug("continuation reply not decodable")
		return Decision{}
	}
	decision := Decision{IsContinuation: v.IsContinuation, EntryID: v.EntryID, Confidence: v.Confidence}
	if !Accept(decision) || !offered[decision.EntryID] {
		return Decision{}
	}
	m.log.WithFields(logrus.Fields{"entry": decision.EntryID, "confidence": decision.Confidence}).Info("continuing recent entry")
	return decision
}

// Accept reports whether d clears the acceptance bar.
func Accept(d Decision) bool {
	return d.IsContinuation && d.Confidence > Threshold && d.EntryID != ""
}
