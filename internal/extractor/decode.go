package extractor

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// fillerByte replaces bytes that have no printable ASCII rendering.
const fillerByte = '.'

// decodeText decodes a plain-text file. A UTF-8 or UTF-16 byte order mark
// selects the encoding; without one the bytes are taken as UTF-8 and invalid
// sequences are dropped.
func decodeText(content []byte) string {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), content)
	if err != nil {
		return decodeBinary(content)
	}

	return strings.ToValidUTF8(string(decoded), "")
}

// decodeHTML honours a charset declared in the markup, falling back to
// plain-text decoding.
func decodeHTML(content []byte) string {
	r, err := charset.NewReader(bytes.NewReader(content), "text/html")
	if err != nil {
		return decodeText(content)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return decodeText(content)
	}

	return strings.ToValidUTF8(buf.String(), "")
}

// decodeBinary turns arbitrary bytes into scannable text. Valid UTF-8 keeps
// its characters apart from control codes; otherwise every byte outside
// printable ASCII becomes fillerByte. Either way a URL next to a NUL is
// cut at the filler instead of swallowing it.
func decodeBinary(content []byte) string {
	if utf8.Valid(content) {
		return strings.Map(func(r rune) rune {
			if r < utf8.RuneSelf && !isPrintableASCII(byte(r)) {
				return fillerByte
			}
			return r
		}, string(content))
	}

	out := make([]byte, len(content))
	for i, b := range content {
		if isPrintableASCII(b) {
			out[i] = b
		} else {
			out[i] = fillerByte
		}
	}

	return string(out)
}

func isPrintableASCII(b byte) bool {
	switch {
	case b >= 0x20 && b < 0x7f:
		return true
	case b == '\t', b == '\n', b == '\r', b == '\v', b == '\f':
		return true
	default:
		return false
	}
}
