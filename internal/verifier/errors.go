package verifier

// ErrorCode defines error types for the verification engine
type ErrorCode string

const (
	// ErrEngineStart is returned when a run cannot begin. It is never used
	// for the failure of an individual probe.
	ErrEngineStart ErrorCode = "EngineStart"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}
