package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

type countingLister struct {
	calls  int
	models []Model
	err    error
}

func (l *countingLister) ListModels(context.Context) ([]Model, error) {
	l.calls++
	return l.models, l.err
}

func TestCatalogResolve(t *testing.T) {
	catalog := NewCatalog("gpt-4o-mini")
	if got := catalog.Resolve("claude-haiku-4-5"); got.Family != FamilyAnthropic {
		t.Fatalf("expected anthropic model, got %+v", got)
	}
	if got := catalog.Resolve("no-such-model"); got.ID != "gpt-4o-mini" {
		t.Fatalf("unknown id should resolve to configured default, got %+v", got)
	}
	if got := catalog.Resolve("ollama/qwen3:8b"); got.Family != FamilyOllama || got.Name != "qwen3:8b" {
		t.Fatalf("expected direct ollama model, got %+v", got)
	}
	if got := NewCatalog("bogus").Resolve(""); got.ID != DefaultModelID {
		t.Fatalf("bogus default should fall back to %s, got %s", DefaultModelID, got.ID)
	}
}

func TestCatalogRemoteIsCached(t *testing.T) {
	catalog := NewCatalog("")
	ok := &countingLister{models: []Model{{ID: "gpt-x", Family: FamilyOpenAI}, {ID: "claude-x", Family: FamilyAnthropic}}}
	broken := &countingLister{err: errors.New("offline")}

	models, err := catalog.Remote(context.Background(), ok, broken)
	if err != nil {
		t.Fatalf("remote failed: %v", err)
	}
	if len(models) != 2 || models[0].Family != FamilyAnthropic {
		t.Fatalf("expected models sorted by family, got %+v", models)
	}
	if _, err := catalog.Remote(context.Background(), ok, broken); err != nil {
		t.Fatalf("cached remote failed: %v", err)
	}
	if ok.calls != 1 {
		t.Fatalf("expected cached listing, lister called %d times", ok.calls)
	}
}

func TestCatalogRemoteAllFailing(t *testing.T) {
	_, err := NewCatalog("").Remote(context.Background(), &countingLister{err: errors.New("offline")})
	if err == nil {
		t.Fatalf("expected error when every lister fails")
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want Reason
	}{
		{&anthropic.Error{StatusCode: http.StatusUnauthorized}, ReasonAuth},
		{&openai.Error{StatusCode: http.StatusTooManyRequests}, ReasonRateLimit},
		{&anthropic.Error{StatusCode: 529}, ReasonRateLimit},
		{&openai.Error{StatusCode: http.StatusBadRequest}, ReasonMalformed},
		{&statusError{StatusCode: http.StatusGatewayTimeout}, ReasonTimeout},
		{context.DeadlineExceeded, ReasonTimeout},
		{fmt.Errorf("%w: bad json", errMalformedReply), ReasonMalformed},
		{errors.New("dial tcp: connection refused"), ReasonNetwork},
		{errors.New("something odd"), ReasonOther},
	}
	for i, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Fatalf("case %d: got %s, want %s", i, got, tc.want)
		}
	}
}
