package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
)

// DispatchRequest is one journaling call as the queue and importer see it.
type DispatchRequest struct {
	System       string
	Turns        []Turn
	ToolsEnabled bool
	// Model is a catalog id; empty or unknown ids resolve to the default.
	Model string
}

// Gateway selects a provider for the resolved model and converts its reply
// into the canonical action shape.
type Gateway struct {
	catalog   *Catalog
	providers map[Family]Provider
	model     string
	timeout   time.Duration
	log       logrus.FieldLogger
}

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout bounds every upstream call. Zero disables the bound.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithModel sets the model used when a request names none.
func WithModel(id string) GatewayOption {
	return func(g *Gateway) { g.model = id }
}

// WithLogger routes gateway logs to logger.
func WithLogger(logger logrus.FieldLogger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.log = logger
		}
	}
}

// NewGateway wires providers by family. A later provider for the same family
// replaces an earlier one.
func NewGateway(catalog *Catalog, providers []Provider, opts ...GatewayOption) *Gateway {
	if catalog == nil {
		catalog = NewCatalog("")
	}
	g := &Gateway{
		catalog:   catalog,
		providers: make(map[Family]Provider, len(providers)),
		log:       logrus.StandardLogger(),
	}
	for _, p := range providers {
		g.providers[Family(p.ID())] = p
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.WithField("component", "gateway")
	return g
}

// Catalog exposes the model catalog the gateway resolves against.
func (g *Gateway) Catalog() *Catalog {
	return g.catalog
}

// Providers returns the configured providers in no particular order.
func (g *Gateway) Providers() []Provider {
	out := make([]Provider, 0, len(g.providers))
	for _, p := range g.providers {
		out = append(out, p)
	}
	return out
}

// Dispatch runs one journaling call and maps the reply to an action. Upstream
// failures come back as *ProviderError; format problems never do, they yield
// a PlainTextFallback action instead.
func (g *Gateway) Dispatch(ctx context.Context, req DispatchRequest) (action.Action, error) {
	var tools []ToolSpec
	if req.ToolsEnabled {
		tools = ToolSpecs()
	}
	reply, model, err := g.call(ctx, req.Model, req.System, req.Turns, tools)
	if err != nil {
		return action.Action{}, err
	}

	act := ParseEnvelope(reply.Text)
	if req.ToolsEnabled {
		for _, raw := range reply.ToolCalls {
			call, ok := normalizeToolCall(raw.Name, raw.Input)
			if !ok {
				g.log.WithFields(logrus.Fields{"model": model.ID, "tool": raw.Name}).Debug("ignoring unknown tool call")
				continue
			}
			// One widget per reply; a native call wins over one embedded in the text.
			act.ToolCall = call
			break
		}
	} else {
		act.ToolCall = nil
	}

	g.log.WithFields(logrus.Fields{
		"model":     model.ID,
		"recovery":  act.Recovery.String(),
		"outcome":   act.Outcome().String(),
		"responses": len(act.Responses),
	}).Debug("dispatch complete")
	return act, nil
}

// Complete returns the raw reply text with tools disabled. Classification
// callers decode it themselves.
func (g *Gateway) Complete(ctx context.Context, system string, turns []Turn, model string) (string, error) {
	reply, _, err := g.call(ctx, model, system, turns, nil)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

func (g *Gateway) call(ctx context.Context, modelID, system string, turns []Turn, tools []ToolSpec) (*Reply, Model, error) {
	if modelID == "" {
		modelID = g.model
	}
	model := g.catalog.Resolve(modelID)
	provider, ok := g.providers[model.Family]
	if !ok {
		return nil, model, &ProviderError{
			Provider: string(model.Family),
			Model:    model.ID,
			Reason:   ReasonAuth,
			Err:      fmt.Errorf("no %s provider configured", model.Family),
		}
	}

	normalized := NormalizeTurns(turns)
	if len(normalized) == 0 {
		return nil, model, &ProviderError{
			Provider: provider.ID(),
			Model:    model.ID,
			Reason:   ReasonMalformed,
			Err:      errors.New("request has no content"),
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.log.WithFields(logrus.Fields{
		"provider": provider.ID(),
		"model":    model.ID,
		"turns":    len(normalized),
		"tools":    len(tools),
	}).Debug("dispatching")

	reply, err := provider.Dispatch(ctx, &Request{
		Model:  model.Name,
		System: system,
		Turns:  normalized,
		Tools:  tools,
	})
	if err != nil {
		perr := wrapProviderError(provider.ID(), model.ID, err)
		g.log.WithFields(logrus.Fields{
			"provider": provider.ID(),
			"model":    model.ID,
			"reason":   perr.Reason,
		}).WithError(err).Warn("provider call failed")
		return nil, model, perr
	}
	if reply == nil {
		reply = &Reply{}
	}
	return reply, model, nil
}
