// Package extractor discovers candidate URLs in documents and free text.
package extractor

import (
	"context"
	"maps"
	"regexp"

	"github.com/morikuni/failure/v2"
	"github.com/spf13/afero"

	"github.com/btraven00/linkscan/internal/log"
	"github.com/btraven00/linkscan/internal/normalizer"
)

// Extractor finds URLs in content and normalizes them. It is safe for
// concurrent use.
type Extractor struct {
	fs         afero.Fs
	normalizer *normalizer.Normalizer
	readers    map[ContentKind]DocumentReader
}

// NewExtractor creates an extractor.
func NewExtractor(options ExtractionOptions) *Extractor {
	fs := options.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	readers := defaultReaders()
	maps.Copy(readers, options.Readers)

	return &Extractor{
		fs:         fs,
		normalizer: normalizer.New(options.CacheSize),
		readers:    readers,
	}
}

// Normalizer returns the normalizer shared by this extractor.
func (e *Extractor) Normalizer() *normalizer.Normalizer {
	return e.normalizer
}

// ExtractText scans text with both URL patterns. Each normalized URL is
// reported once, at its first appearance; matches that fail normalization
// are dropped.
func (e *Extractor) ExtractText(text, sourceID string) []CandidateURL {
	c := e.newCollector(sourceID)
	c.scan(text, scanPatterns...)

	return c.candidates
}

// ExtractBytes decodes content according to kind and scans it. Kinds that
// need a file (PDF, office, spreadsheet) are scanned as raw bytes.
func (e *Extractor) ExtractBytes(content []byte, kind ContentKind, sourceID string) []CandidateURL {
	var text string

	switch kind {
	case KindText:
		text = decodeText(content)
	case KindHTML:
		text = decodeHTML(content)
	default:
		text = decodeBinary(content)
	}

	return e.ExtractText(text, sourceID)
}

// ExtractDocument merges a document's structural links with the URLs found
// in its text. Structural links come first.
func (e *Extractor) ExtractDocument(doc *Document, sourceID string) []CandidateURL {
	c := e.newCollector(sourceID)

	for _, link := range doc.Links {
		c.add(link)
	}

	c.scan(doc.Text, scanPatterns...)

	return c.candidates
}

// ExtractFromText handles text typed or pasted by the user. Only the primary
// pattern runs and the original form is replaced by the normalized one.
func (e *Extractor) ExtractFromText(text string) []CandidateURL {
	c := e.newCollector(ManualSourceID)
	c.scan(text, primaryURLPattern)

	for i := range c.candidates {
		c.candidates[i].Original = c.candidates[i].Normalized
	}

	return c.candidates
}

// ExtractFile reads path with the reader for its content kind. If the reader
// fails, the raw bytes are scanned instead; only a file that cannot be read
// at all is an error.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]CandidateURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind := KindForPath(path)

	reader, ok := e.readers[kind]
	if !ok {
		return nil, failure.New(ErrUnsupportedDocument,
			failure.Message("no reader for content kind"),
			failure.Context{"path": path, "kind": string(kind)},
		)
	}

	doc, err := reader.ReadDocument(e.fs, path)
	if err != nil {
		log.Debug("reader failed, scanning raw bytes", "path", path, "kind", kind, "error", err)

		content, rerr := afero.ReadFile(e.fs, path)
		if rerr != nil {
			return nil, failure.Translate(rerr, ErrUnreadableDocument,
				failure.Context{"path": path},
			)
		}

		doc = &Document{Text: decodeBinary(content)}
	}

	return e.ExtractDocument(doc, path), nil
}

// collector accumulates candidates for one source, keeping first appearance.
type collector struct {
	n          *normalizer.Normalizer
	sourceID   string
	seen       map[string]struct{}
	candidates []CandidateURL
}

func (e *Extractor) newCollector(sourceID string) *collector {
	return &collector{
		n:        e.normalizer,
		sourceID: sourceID,
		seen:     make(map[string]struct{}),
	}
}

func (c *collector) scan(text string, patterns ...*regexp.Regexp) {
	if text == "" {
		return
	}

	for _, pattern := range patterns {
		for _, match := range pattern.FindAllString(text, -1) {
			c.add(match)
		}
	}
}

func (c *collector) add(raw string) {
	normalized, ok := c.n.Normalize(raw)
	if !ok {
		return
	}

	if _, dup := c.seen[normalized]; dup {
		return
	}

	c.seen[normalized] = struct{}{}
	c.candidates = append(c.candidates, CandidateURL{
		Original:   raw,
		Normalized: normalized,
		SourceID:   c.sourceID,
	})
}
