package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestDownloadCacheReusesFreshFile(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Etag", `"v1"`)
		_, _ = w.Write([]byte("%PDF-1.4\nHello"))
	}))
	t.Cleanup(server.Close)

	cache, err := newDownloadCache(t.TempDir(), server.Client())
	if err != nil {
		t.Fatalf("newDownloadCache: %v", err)
	}
	ctx := context.Background()

	path, err := cache.Fetch(ctx, server.URL+"/share/chat.pdf", kindPDF)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cached file missing: %v", err)
	}
	path2, err := cache.Fetch(ctx, server.URL+"/share/chat.pdf", kindPDF)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if path != path2 {
		t.Fatalf("paths differ: %s vs %s", path, path2)
	}
	if hits.Load() != 1 {
		t.Fatalf("cache miss triggered download, total hits %d", hits.Load())
	}
}

func TestDownloadCacheRevalidatesStaleFile(t *testing.T) {
	var conditional atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v2"` {
			conditional.Store(true)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Etag", `"v2"`)
		_, _ = w.Write([]byte("%PDF-1.4\nUpdated"))
	}))
	t.Cleanup(server.Close)

	cache, err := newDownloadCache(t.TempDir(), server.Client())
	if err != nil {
		t.Fatalf("newDownloadCache: %v", err)
	}
	ctx := context.Background()

	path, err := cache.Fetch(ctx, server.URL+"/t.pdf", kindPDF)
	if err != nil {
		t.Fatalf("initial fetch: %v", err)
	}
	old := time.Now().Add(-(cacheTTL + time.Hour))
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, err := cache.Fetch(ctx, server.URL+"/t.pdf", kindPDF); err != nil {
		t.Fatalf("conditional fetch: %v", err)
	}
	if !conditional.Load() {
		t.Fatalf("expected a conditional request for a stale file")
	}
}

func TestDownloadCacheResumesPartialDownload(t *testing.T) {
	var rangeHeader atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader.Store(r.Header.Get("Range"))
		w.Header().Set("Etag", `"resume"`)
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("Human: hi"))
	}))
	t.Cleanup(server.Close)

	cache, err := newDownloadCache(t.TempDir(), server.Client())
	if err != nil {
		t.Fatalf("newDownloadCache: %v", err)
	}
	rawURL := server.URL + "/resume.pdf"
	e := cache.entry(rawURL, kindPDF)
	if err := os.WriteFile(e.part, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	if err := e.writeMeta(cacheMeta{Kind: kindPDF, ETag: `"resume"`}); err != nil {
		t.Fatalf("write meta: %v", err)
	}

	path, err := cache.Fetch(context.Background(), rawURL, kindPDF)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if path != e.body {
		t.Fatalf("unexpected path: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(data) != "%PDF-1.4\nHuman: hi" {
		t.Fatalf("resume failed, got %q", string(data))
	}
	if got := rangeHeader.Load(); got != fmt.Sprintf("bytes=%d-", len("%PDF-1.4\n")) {
		t.Fatalf("expected range header, got %v", got)
	}
	if _, err := os.Stat(e.part); !os.IsNotExist(err) {
		t.Fatalf("partial file should be removed, err=%v", err)
	}
}

func TestDownloadCacheReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cache, err := newDownloadCache(t.TempDir(), server.Client())
	if err != nil {
		t.Fatalf("newDownloadCache: %v", err)
	}
	_, err = cache.Fetch(context.Background(), server.URL+"/private.pdf", kindPDF)
	var serr *statusError
	if !errors.As(err, &serr) || serr.Status != http.StatusForbidden {
		t.Fatalf("expected a 403 status error, got %v", err)
	}
}

func TestDownloadCacheChecksContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login.pdf":
			_, _ = w.Write([]byte("<!DOCTYPE html><html><body>Sign in</body></html>"))
		case "/binary.txt":
			_, _ = w.Write([]byte{0x00, 0x01, 0x02, 0xff})
		default:
			_, _ = w.Write([]byte("Human: hello\nAssistant: hi"))
		}
	}))
	t.Cleanup(server.Close)

	cache, err := newDownloadCache(t.TempDir(), server.Client())
	if err != nil {
		t.Fatalf("newDownloadCache: %v", err)
	}
	ctx := context.Background()

	_, err = cache.Fetch(ctx, server.URL+"/login.pdf", kindPDF)
	var cerr *contentError
	if !errors.As(err, &cerr) || !cerr.Page {
		t.Fatalf("expected a web page to be rejected, got %v", err)
	}
	if _, err := os.Stat(cache.entry(server.URL+"/login.pdf", kindPDF).body); !os.IsNotExist(err) {
		t.Fatalf("rejected downloads must not be cached, err=%v", err)
	}

	_, err = cache.Fetch(ctx, server.URL+"/binary.txt", kindText)
	if !errors.As(err, &cerr) || cerr.Page {
		t.Fatalf("expected binary text to be rejected, got %v", err)
	}

	if _, err := cache.Fetch(ctx, server.URL+"/chat.txt", kindText); err != nil {
		t.Fatalf("plain text transcript: %v", err)
	}
}

func TestDownloadCacheKeysByKind(t *testing.T) {
	cache, err := newDownloadCache(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("newDownloadCache: %v", err)
	}
	asPDF := cache.entry("https://files.example/chat", kindPDF)
	asText := cache.entry("https://files.example/chat", kindText)
	if asPDF.body == asText.body || asPDF.meta == asText.meta {
		t.Fatalf("kinds must not share cache files: %s vs %s", asPDF.body, asText.body)
	}
}
