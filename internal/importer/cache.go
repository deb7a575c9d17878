package importer

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	cacheTTL           = 24 * time.Hour
	defaultHTTPTimeout = 90 * time.Second
	sniffLen           = 512
)

// transcriptKind is the format of a downloadable transcript. It selects the
// content check and is part of the cache key.
type transcriptKind string

const (
	kindPDF  transcriptKind = "pdf"
	kindText transcriptKind = "txt"
)

// kindFor maps a URL path to the transcript format it names.
func kindFor(urlPath string) (transcriptKind, bool) {
	switch strings.ToLower(path.Ext(urlPath)) {
	case ".pdf":
		return kindPDF, true
	case ".txt", ".md":
		return kindText, true
	}
	return "", false
}

// check reports whether head, the start of a downloaded body, looks like a
// transcript of this kind.
func (k transcriptKind) check(head []byte) error {
	detected := http.DetectContentType(head)
	if strings.HasPrefix(detected, "text/html") {
		return &contentError{Kind: k, Detected: detected, Page: true}
	}
	switch k {
	case kindPDF:
		if !bytes.HasPrefix(head, []byte("%PDF-")) {
			return &contentError{Kind: k, Detected: detected}
		}
	case kindText:
		if !strings.HasPrefix(detected, "text/plain") {
			return &contentError{Kind: k, Detected: detected}
		}
	}
	return nil
}

// contentError is a download whose body is not the transcript it claimed to
// be. Page is set when a web page came back instead, usually a login wall.
type contentError struct {
	Kind     transcriptKind
	Detected string
	Page     bool
}

func (e *contentError) Error() string {
	return fmt.Sprintf("expected a %s transcript, got %s", e.Kind, e.Detected)
}

// statusError is a non-success HTTP response from a transcript host.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("download failed: %d %s", e.Status, http.StatusText(e.Status))
}

// downloadCache keeps transcripts on disk for a day. Stale copies are
// revalidated with their validators and interrupted downloads resume with a
// Range request.
type downloadCache struct {
	dir    string
	client *http.Client
	now    func() time.Time
}

func newDownloadCache(dir string, client *http.Client) (*downloadCache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "journal", "transcripts")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &downloadCache{dir: dir, client: client, now: time.Now}, nil
}

// cacheEntry is where one transcript lives on disk.
type cacheEntry struct {
	url  string
	kind transcriptKind
	body string
	meta string
	part string
}

type cacheMeta struct {
	URL          string         `json:"url"`
	Kind         transcriptKind `json:"kind"`
	ETag         string         `json:"etag,omitempty"`
	LastModified string         `json:"lastModified,omitempty"`
	FetchedAt    time.Time      `json:"fetchedAt"`
	Size         int64          `json:"size"`
}

func (c *downloadCache) entry(rawURL string, kind transcriptKind) cacheEntry {
	sum := sha1.Sum([]byte(string(kind) + "\n" + rawURL))
	base := filepath.Join(c.dir, hex.EncodeToString(sum[:]))
	return cacheEntry{
		url:  rawURL,
		kind: kind,
		body: base + "." + string(kind),
		meta: base + ".meta",
		part: base + ".part",
	}
}

// Fetch returns a local file holding the transcript at rawURL. When the host
// cannot be reached a previously cached copy is served, however old.
func (c *downloadCache) Fetch(ctx context.Context, rawURL string, kind transcriptKind) (string, error) {
	e := c.entry(rawURL, kind)
	cached, _ := os.Stat(e.body)
	if cached != nil && cached.Size() > 0 && c.now().Sub(cached.ModTime()) < cacheTTL {
		return e.body, nil
	}
	err := c.refresh(ctx, e, cached)
	if err == nil {
		return e.body, nil
	}
	if cached != nil && cached.Size() > 0 {
		return e.body, nil
	}
	return "", err
}

func (c *downloadCache) refresh(ctx context.Context, e cacheEntry, cached os.FileInfo) error {
	meta := e.readMeta()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return err
	}
	revalidate := cached != nil && cached.Size() > 0
	if revalidate {
		setIf(req.Header, "If-None-Match", meta.ETag)
		setIf(req.Header, "If-Modified-Since", meta.LastModified)
	}
	var resumeAt int64
	if part, err := os.Stat(e.part); err == nil && part.Size() > 0 {
		resumeAt = part.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeAt))
		if validator := firstNonEmpty(meta.ETag, meta.LastModified); validator != "" {
			req.Header.Set("If-Range", validator)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && revalidate:
		now := c.now()
		_ = os.Chtimes(e.body, now, now)
		meta.FetchedAt = now.UTC()
		return e.writeMeta(meta)
	case resp.StatusCode == http.StatusOK:
		return c.store(e, resp, false)
	case resp.StatusCode == http.StatusPartialContent:
		return c.store(e, resp, resumeAt > 0)
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, sniffLen))
	return &statusError{Status: resp.StatusCode, Body: string(snippet)}
}

// store writes the body to the partial file, checks that it is the kind of
// transcript expected, and only then moves it into place.
func (c *downloadCache) store(e cacheEntry, resp *http.Response, resume bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if resume {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(e.part, flags, 0o644)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(f, resp.Body)
	if err := f.Close(); copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		return copyErr
	}

	head, err := readHead(e.part)
	if err != nil {
		return err
	}
	if err := e.kind.check(head); err != nil {
		_ = os.Remove(e.part)
		return err
	}
	if err := os.Rename(e.part, e.body); err != nil {
		return err
	}

	meta := cacheMeta{
		URL:          resp.Request.URL.String(),
		Kind:         e.kind,
		ETag:         resp.Header.Get("Etag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    c.now().UTC(),
	}
	if info, err := os.Stat(e.body); err == nil {
		meta.Size = info.Size()
	}
	return e.writeMeta(meta)
}

func (e cacheEntry) readMeta() cacheMeta {
	var meta cacheMeta
	data, err := os.ReadFile(e.meta)
	if err != nil || json.Unmarshal(data, &meta) != nil || meta.Kind != e.kind {
		return cacheMeta{}
	}
	return meta
}

func (e cacheEntry) writeMeta(meta cacheMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(e.meta, data, 0o644)
}

func readHead(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return head[:n], err
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
