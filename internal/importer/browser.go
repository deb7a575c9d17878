package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jacobB1290/JwebAPP-sub000/internal/compaction"
)

const defaultFetchTimeout = 45 * time.Second

// extractScript collects role-attributed message nodes. Pages without them
// still import when their body is a compacted transcript.
const extractScript = `(() => {
  const out = [];
  document.querySelectorAll('[data-message-author-role]').forEach(n => {
    out.push({role: n.getAttribute('data-message-author-role') || '', content: n.innerText || ''});
  });
  if (out.length === 0 && document.body) {
    const body = document.body.innerText || '';
    if (body.trim().startsWith('[Compacted conversation]')) {
      out.push({role: 'user', content: body});
    }
  }
  const meta = document.querySelector('meta[name="model"]');
  return {messages: out, model: meta ? meta.content : ''};
})()`

type extracted struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Model string `json:"model"`
}

// hostLimiter hands out one token bucket per host.
type hostLimiter struct {
	mu       sync.Mutex
	every    time.Duration
	limiters map[string]*rate.Limiter
}

func newHostLimiter(perMinute int) *hostLimiter {
	if perMinute <= 0 {
		perMinute = 6
	}
	return &hostLimiter{every: time.Minute / time.Duration(perMinute), limiters: map[string]*rate.Limiter{}}
}

func (h *hostLimiter) Wait(ctx context.Context, host string) error {
	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(h.every), 1)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()
	return limiter.Wait(ctx)
}

// BrowserOptions configures a BrowserFetcher.
type BrowserOptions struct {
	Timeout   time.Duration
	PerMinute int
	Headless  bool
	// Script overrides the in-page extraction script. It must evaluate to
	// {messages: [{role, content}], model}.
	Script string
	Logger logrus.FieldLogger
}

// BrowserFetcher renders shared conversation pages in headless Chrome.
type BrowserFetcher struct {
	timeout time.Duration
	limiter *hostLimiter
	alloc   []chromedp.ExecAllocatorOption
	script  string
	log     logrus.FieldLogger
}

// NewBrowserFetcher builds a fetcher. Chrome is started per fetch.
func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.Script == "" {
		opts.Script = extractScript
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	alloc := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	return &BrowserFetcher{
		timeout: opts.Timeout,
		limiter: newHostLimiter(opts.PerMinute),
		alloc:   alloc,
		script:  opts.Script,
		log:     opts.Logger.WithField("component", "fetch"),
	}
}

// Fetch navigates to rawURL and extracts the conversation.
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return Page{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.limiter.Wait(ctx, u.Host); err != nil {
		return Page{}, classifyContextError(ctx, rawURL, err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.alloc...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	log := b.log.WithField("host", u.Host)
	var resp *network.Response
	resp, err = chromedp.RunResponse(browserCtx, chromedp.Navigate(u.String()))
	if err != nil {
		log.WithError(err).Warn("navigation failed")
		return Page{}, b.classify(ctx, rawURL, err)
	}
	if resp != nil {
		if tag, bad := statusTag(resp.Status); bad {
			log.WithField("status", resp.Status).Warn("page refused")
			return Page{}, fetchError(tag, rawURL, errors.New(resp.StatusText))
		}
	}

	var (
		title string
		raw   extracted
	)
	if err := chromedp.Run(browserCtx,
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
		chromedp.Evaluate(b.script, &raw),
	); err != nil {
		log.WithError(err).Warn("extraction failed")
		return Page{}, b.classify(ctx, rawURL, err)
	}

	msgs := make([]Message, 0, len(raw.Messages))
	for _, m := range raw.Messages {
		msgs = append(msgs, Message{Role: compaction.Role(m.Role), Content: m.Content})
	}
	page := Page{Title: strings.TrimSpace(title), Model: strings.TrimSpace(raw.Model), Messages: cleanMessages(msgs)}
	if len(page.Messages) == 0 {
		return Page{}, fetchError(TagEmpty, rawURL, nil)
	}
	log.WithField("messages", len(page.Messages)).Info("page fetched")
	return page, nil
}

func (b *BrowserFetcher) classify(ctx context.Context, rawURL string, err error) *FetchError {
	if ctx.Err() != nil {
		return classifyContextError(ctx, rawURL, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "err_blocked") || strings.Contains(msg, "err_access_denied") {
		return fetchError(TagBlocked, rawURL, err)
	}
	if strings.Contains(msg, "err_timed_out") {
		return fetchError(TagTimeout, rawURL, err)
	}
	return fetchError(TagUnavailable, rawURL, err)
}
