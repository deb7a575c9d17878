// Package importer brings conversations from other chat products into the
// journal and files them afterwards.
package importer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jacobB1290/JwebAPP-sub000/internal/compaction"
)

// Message is one turn of a fetched conversation.
type Message struct {
	Role    compaction.Role `json:"role"`
	Content string          `json:"content"`
}

// Page is what a fetcher returns for a shared conversation URL.
type Page struct {
	Title    string    `json:"title,omitempty"`
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

// Fetcher loads a shared conversation. Failures are *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// FetchTag classifies why a fetch failed.
type FetchTag string

const (
	TagInvalidURL  FetchTag = "invalid_url"
	TagTimeout     FetchTag = "timeout"
	TagBlocked     FetchTag = "blocked"
	TagEmpty       FetchTag = "empty"
	TagUnavailable FetchTag = "unavailable"
)

// FetchError reports a failed fetch with a stable tag for the UI.
type FetchError struct {
	Tag FetchTag
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Tag)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Tag, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchError(tag FetchTag, rawURL string, err error) *FetchError {
	return &FetchError{Tag: tag, URL: rawURL, Err: err}
}

// TagOf returns the tag of a *FetchError in err's chain, or "" if none.
func TagOf(err error) FetchTag {
	var ferr *FetchError
	if errors.As(err, &ferr) {
		return ferr.Tag
	}
	return ""
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fetchError(TagInvalidURL, rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fetchError(TagInvalidURL, rawURL, fmt.Errorf("unsupported url %q", rawURL))
	}
	return u, nil
}

// classifyContextError maps context failures onto fetch tags.
func classifyContextError(ctx context.Context, rawURL string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fetchError(TagTimeout, rawURL, err)
	}
	return fetchError(TagUnavailable, rawURL, err)
}

func statusTag(status int64) (FetchTag, bool) {
	switch {
	case status == 401 || status == 403 || status == 429:
		return TagBlocked, true
	case status >= 400:
		return TagUnavailable, true
	default:
		return "", false
	}
}

// Router sends transcript files (.pdf, .txt, .md) to the transcript fetcher
// and everything else to the browser.
type Router struct {
	Browser    Fetcher
	Transcript Fetcher
}

func (r Router) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return Page{}, err
	}
	if _, ok := kindFor(u.Path); ok && r.Transcript != nil {
		return r.Transcript.Fetch(ctx, rawURL)
	}
	if r.Browser == nil {
		return Page{}, fetchError(TagUnavailable, rawURL, errors.New("no browser fetcher configured"))
	}
	return r.Browser.Fetch(ctx, rawURL)
}

// normalizeRole maps the role names different products use onto the two
// conversational roles. Unknown roles are reported as not ok.
func normalizeRole(role string) (compaction.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "human", "you":
		return compaction.RoleUser, true
	case "assistant", "ai", "model", "bot", "chatgpt", "claude", "gemini":
		return compaction.RoleAssistant, true
	default:
		return "", false
	}
}

// cleanMessages drops blank and unattributed turns.
func cleanMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role, ok := normalizeRole(string(m.Role))
		if !ok {
			continue
		}
		out = append(out, Message{Role: role, Content: content})
	}
	return out
}
