package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
)

// DocumentReader turns one file into a Document.
type DocumentReader interface {
	ReadDocument(fsys afero.Fs, path string) (*Document, error)
}

// DocumentReaderFunc adapts a function to DocumentReader.
type DocumentReaderFunc func(fsys afero.Fs, path string) (*Document, error)

// ReadDocument calls f.
func (f DocumentReaderFunc) ReadDocument(fsys afero.Fs, path string) (*Document, error) {
	return f(fsys, path)
}

func defaultReaders() map[ContentKind]DocumentReader {
	return map[ContentKind]DocumentReader{
		KindText:        DocumentReaderFunc(readText),
		KindHTML:        DocumentReaderFunc(readHTML),
		KindPDF:         DocumentReaderFunc(readPDF),
		KindOffice:      DocumentReaderFunc(readOffice),
		KindSpreadsheet: DocumentReaderFunc(readSpreadsheet),
		KindBinary:      DocumentReaderFunc(readBinary),
	}
}

func readText(fsys afero.Fs, path string) (*Document, error) {
	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	return &Document{Text: decodeText(content)}, nil
}

func readBinary(fsys afero.Fs, path string) (*Document, error) {
	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	return &Document{Text: decodeBinary(content)}, nil
}

// hrefSelector covers the elements whose attributes commonly hold links.
const hrefSelector = "a[href], area[href], link[href], img[src], script[src], iframe[src], source[src]"

// readHTML collects absolute href/src targets and the page's text nodes.
// Attribute values are only taken from the parsed targets; scanning raw
// markup would glue closing quotes and tags onto the URLs.
func readHTML(fsys afero.Fs, path string) (*Document, error) {
	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	text := decodeHTML(content)
	doc := &Document{Text: text}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		// Malformed markup still gets the raw scan.
		return doc, nil
	}

	var visible strings.Builder

	page.Find("*").Contents().Each(func(_ int, s *goquery.Selection) {
		if n := s.Get(0); n.Type == html.TextNode {
			visible.WriteString(n.Data)
			visible.WriteByte('\n')
		}
	})

	doc.Text = visible.String()

	page.Find(hrefSelector).Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"href", "src"} {
			if v, ok := s.Attr(attr); ok && isAbsoluteLink(v) {
				doc.Links = append(doc.Links, strings.TrimSpace(v))
			}
		}
	})

	return doc, nil
}

func isAbsoluteLink(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))

	return strings.HasPrefix(v, "http://") ||
		strings.HasPrefix(v, "https://") ||
		strings.HasPrefix(v, "//")
}

// readPDF collects URI link annotations and the plain text of every page.
// The PDF parser panics on some malformed files, which is reported as an
// error so the caller can fall back to a raw scan.
func readPDF(fsys afero.Fs, path string) (doc *Document, err error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, err
	}

	doc = &Document{}

	var text strings.Builder

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		doc.Links = append(doc.Links, pdfLinkTargets(page)...)

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		text.WriteString(pageText)
		text.WriteByte('\n')
	}

	doc.Text = text.String()

	return doc, nil
}

func pdfLinkTargets(page pdf.Page) []string {
	var links []string

	annots := page.V.Key("Annots")
	for i := 0; i < annots.Len(); i++ {
		action := annots.Index(i).Key("A")
		if action.IsNull() {
			continue
		}

		if uri := action.Key("URI").Text(); uri != "" {
			links = append(links, uri)
		}
	}

	return links
}

// readOffice converts word-processing and presentation formats to text.
func readOffice(fsys afero.Fs, path string) (*Document, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	response, err := docconv.Convert(f, docconv.MimeTypeByExtension(path), false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document '%s': %w", path, err)
	}

	return &Document{Text: response.Body}, nil
}

// readSpreadsheet emits every sheet as tab-separated rows and collects cell
// hyperlinks.
func readSpreadsheet(fsys afero.Fs, path string) (*Document, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	book, err := excelize.OpenReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet '%s': %w", path, err)
	}
	defer book.Close()

	doc := &Document{}

	var text bytes.Buffer

	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			continue
		}

		for r, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteByte('\n')

			for c := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					continue
				}

				if ok, target, err := book.GetCellHyperLink(sheet, cell); err == nil && ok && isAbsoluteLink(target) {
					doc.Links = append(doc.Links, target)
				}
			}
		}
	}

	doc.Text = text.String()

	return doc, nil
}
