package extractor

import (
	"github.com/spf13/afero"

	"github.com/btraven00/linkscan/internal/normalizer"
)

// ManualSourceID tags candidates typed or pasted by the user.
const ManualSourceID = "Manual input"

// CandidateURL is a URL-shaped string discovered in content. Normalized is
// always non-empty for candidates produced by the Extractor.
type CandidateURL struct {
	Original   string `json:"original_url"`
	Normalized string `json:"normalized_url"`
	SourceID   string `json:"source"`
}

// ContentKind selects how a resource is turned into scannable text.
type ContentKind string

const (
	KindText        ContentKind = "text"
	KindHTML        ContentKind = "html"
	KindPDF         ContentKind = "pdf"
	KindOffice      ContentKind = "office"
	KindSpreadsheet ContentKind = "spreadsheet"
	KindBinary      ContentKind = "binary"
)

// Document is what a reader produces for one resource: visible text plus
// any hyperlink targets stored as structure (PDF annotations, href
// attributes, spreadsheet cell links).
type Document struct {
	Text  string
	Links []string
}

// ExtractionOptions configures an Extractor.
type ExtractionOptions struct {
	// Fs is the filesystem files are read from. Defaults to the OS filesystem.
	Fs afero.Fs
	// CacheSize bounds the normalizer cache.
	CacheSize int
	// Readers overrides the reader used for a content kind.
	Readers map[ContentKind]DocumentReader
}

// DefaultExtractionOptions returns default extraction options
func DefaultExtractionOptions() ExtractionOptions {
	return ExtractionOptions{
		Fs:        afero.NewOsFs(),
		CacheSize: normalizer.DefaultCacheSize,
	}
}
