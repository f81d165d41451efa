package extractor

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// primaryURLPattern stops at markup, whitespace and quotes.
	primaryURLPattern = regexp.MustCompile(`((?i:https?)://[^<\s'"]{8,})`)

	// boundaryURLPattern tolerates quotes inside the URL but refuses to end on
	// '>', catching links glued to closing markup or sentence punctuation.
	boundaryURLPattern = regexp.MustCompile(`(?i:https?)://[^<\s]{8,}[^\s>]`)
)

// scanPatterns run over every text blob in this order.
var scanPatterns = []*regexp.Regexp{
	primaryURLPattern,
	boundaryURLPattern,
}

// kindByExtension maps lower-cased file extensions to content kinds.
// Anything missing here is scanned as binary.
var kindByExtension = map[string]ContentKind{
	".txt":  KindText,
	".md":   KindText,
	".xml":  KindText,
	".log":  KindText,
	".csv":  KindText,
	".tsv":  KindText,
	".json": KindText,
	".yaml": KindText,
	".yml":  KindText,
	".rst":  KindText,

	".html": KindHTML,
	".htm":  KindHTML,

	".pdf": KindPDF,

	".docx":  KindOffice,
	".doc":   KindOffice,
	".pptx":  KindOffice,
	".odt":   KindOffice,
	".rtf":   KindOffice,
	".pages": KindOffice,

	".xlsx": KindSpreadsheet,
	".xlsm": KindSpreadsheet,
}

// KindForPath returns the content kind for a file name.
func KindForPath(path string) ContentKind {
	if kind, ok := kindByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}

	return KindBinary
}
