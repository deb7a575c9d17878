package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/jacobB1290/JwebAPP-sub000/internal/compaction"
)

var (
	extraneousSpace = regexp.MustCompile(`[ \t]+`)
	markerLine      = regexp.MustCompile(`(?m)^(Human|Assistant):`)
)

// TranscriptFetcher imports conversations saved as files: PDF exports and
// plain-text or markdown transcripts.
type TranscriptFetcher struct {
	cache *downloadCache
	log   logrus.FieldLogger
}

// NewTranscriptFetcher caches downloads under dir. A nil client uses a
// default with a generous timeout.
func NewTranscriptFetcher(dir string, client *http.Client, logger logrus.FieldLogger) (*TranscriptFetcher, error) {
	cache, err := newDownloadCache(dir, client)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TranscriptFetcher{cache: cache, log: logger.WithField("component", "fetch")}, nil
}

func (f *TranscriptFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return Page{}, err
	}
	kind, ok := kindFor(u.Path)
	if !ok {
		return Page{}, fetchError(TagInvalidURL, rawURL, errors.New("not a transcript file"))
	}
	local, err := f.cache.Fetch(ctx, u.String(), kind)
	if err != nil {
		return Page{}, f.classify(ctx, rawURL, err)
	}

	var text string
	switch kind {
	case kindPDF:
		text, err = pdfText(local)
	default:
		var data []byte
		data, err = os.ReadFile(local)
		text = string(data)
	}
	if err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{"url": rawURL, "kind": kind}).Warn("transcript extraction failed")
		return Page{}, fetchError(TagUnavailable, rawURL, err)
	}
	msgs := TranscriptMessages(text)
	if len(msgs) == 0 {
		return Page{}, fetchError(TagEmpty, rawURL, nil)
	}
	title := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	return Page{Title: title, Messages: msgs}, nil
}

func (f *TranscriptFetcher) classify(ctx context.Context, rawURL string, err error) error {
	var (
		serr *statusError
		cerr *contentError
	)
	switch {
	case errors.As(err, &serr):
		tag, _ := statusTag(int64(serr.Status))
		return fetchError(tag, rawURL, err)
	case errors.As(err, &cerr) && cerr.Page:
		return fetchError(TagBlocked, rawURL, err)
	case errors.As(err, &cerr):
		return fetchError(TagUnavailable, rawURL, err)
	case ctx.Err() != nil:
		return classifyContextError(ctx, rawURL, err)
	}
	return fetchError(TagUnavailable, rawURL, err)
}

// pdfText extracts text row by row so line-start markers survive.
func pdfText(file string) (string, error) {
	fh, reader, err := pdf.Open(file)
	if err != nil {
		if fh != nil {
			fh.Close()
		}
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer fh.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		for _, row := range rows {
			var line strings.Builder
			for _, word := range row.Content {
				line.WriteString(word.S)
			}
			b.WriteString(strings.TrimSpace(extraneousSpace.ReplaceAllString(line.String(), " ")))
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// TranscriptMessages turns plain transcript text into messages. Compacted
// exports and Human:/Assistant: transcripts are split into turns; anything
// else becomes a single user message.
func TranscriptMessages(text string) []Message {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var turns []compaction.Turn
	switch {
	case compaction.IsCompacted(text):
		turns = compaction.Parse(text)
	case markerLine.MatchString(text):
		turns = compaction.Parse(compaction.HeaderMarker + "\n" + text)
	default:
		turns = []compaction.Turn{{Role: compaction.RoleUser, Content: text}}
	}
	return fromTurns(turns)
}

func fromTurns(turns []compaction.Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, Message{Role: t.Role, Content: t.Content})
	}
	return out
}
