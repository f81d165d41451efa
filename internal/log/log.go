package log

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/motemen/go-loghttp"
)

// Logger is the global logger instance
var Logger *slog.Logger

var level = new(slog.LevelVar)

var mu sync.Mutex

// InitLogger initializes the global logger writing to w.
// The level starts at Debug if LINKSCAN_DEBUG is set.
func InitLogger(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	level.Set(slog.LevelInfo)
	if os.Getenv("LINKSCAN_DEBUG") != "" {
		level.Set(slog.LevelDebug)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func init() {
	InitLogger(os.Stderr)
}

// SetVerbose switches debug logging on or off.
func SetVerbose(verbose bool) {
	if verbose {
		level.Set(slog.LevelDebug)
		return
	}

	if os.Getenv("LINKSCAN_DEBUG") == "" {
		level.Set(slog.LevelInfo)
	}
}

// DebugEnabled reports whether debug messages are emitted.
func DebugEnabled() bool {
	return level.Level() <= slog.LevelDebug
}

// WrapTransport returns a transport that logs every request and response at
// debug level. With debug logging off the base transport is returned as is.
func WrapTransport(base http.RoundTripper) http.RoundTripper {
	if !DebugEnabled() {
		return base
	}

	return &loghttp.Transport{
		Transport: base,
		LogRequest: func(req *http.Request) {
			Debug("HTTP request",
				"method", req.Method,
				"url", req.URL.String(),
			)
		},
		LogResponse: func(resp *http.Response) {
			Debug("HTTP response",
				"method", resp.Request.Method,
				"url", resp.Request.URL.String(),
				"status_code", resp.StatusCode,
			)
		},
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}
