package extractor

// ErrorCode defines error types for extraction
type ErrorCode string

const (
	// ErrUnreadableDocument is returned when a file cannot be read at all
	ErrUnreadableDocument ErrorCode = "UnreadableDocument"
	// ErrUnsupportedDocument is returned when a reader rejects a file and no
	// fallback applies
	ErrUnsupportedDocument ErrorCode = "UnsupportedDocument"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}
