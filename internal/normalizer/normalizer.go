// Package normalizer canonicalizes URL-like strings into a comparable form.
package normalizer

import (
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"
)

// DefaultCacheSize is the number of raw inputs remembered per Normalizer.
const DefaultCacheSize = 1024

// trailingPunctuation is stripped from the end of candidates and canonical forms.
const trailingPunctuation = ".,:;!?"

// maxPasses bounds the canonicalization fixpoint loop.
const maxPasses = 8

type cacheEntry struct {
	value string
	ok    bool
}

// Normalizer turns raw URL-like strings into scheme://host/path form.
// It is safe for concurrent use.
type Normalizer struct {
	cache *lru.Cache[string, cacheEntry]
}

// New creates a Normalizer whose memo cache holds at most cacheSize entries.
// A cacheSize of zero or less disables caching.
func New(cacheSize int) *Normalizer {
	n := &Normalizer{}

	if cacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		n.cache, _ = lru.New[string, cacheEntry](cacheSize)
	}

	return n
}

// Normalize returns the canonical form of raw, or false when raw is not a
// usable http(s) URL. The result does not depend on earlier calls.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	if n.cache != nil {
		if entry, hit := n.cache.Get(raw); hit {
			return entry.value, entry.ok
		}
	}

	value, ok := Normalize(raw)

	if n.cache != nil {
		n.cache.Add(raw, cacheEntry{value: value, ok: ok})
	}

	return value, ok
}

// Len reports how many inputs are currently cached.
func (n *Normalizer) Len() int {
	if n.cache == nil {
		return 0
	}

	return n.cache.Len()
}

// Normalize is the uncached canonicalization function.
//
// Steps: trim whitespace and trailing punctuation, NFC-compose, infer a
// missing scheme, require a host, lower-case the host and drop query and
// fragment. Userinfo is dropped and the path is emitted in escaped form, so
// "/café" and "/caf%C3%A9" compare equal. The step is re-applied until the output is stable, so
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) (string, bool) {
	current, ok := canonicalize(raw)
	if !ok {
		return "", false
	}

	for i := 0; i < maxPasses; i++ {
		next, ok := canonicalize(current)
		if !ok {
			return "", false
		}

		if next == current {
			return current, true
		}

		current = next
	}

	return "", false
}

func canonicalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, trailingPunctuation)
	s = norm.NFC.String(s)

	if s == "" {
		return "", false
	}

	s, ok := withScheme(s)
	if !ok {
		return "", false
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Host)
	canonical := u.Scheme + "://" + host + u.EscapedPath()

	return strings.TrimRight(canonical, trailingPunctuation), true
}

// withScheme infers https for scheme-relative and bare host.tld inputs.
func withScheme(s string) (string, bool) {
	lower := strings.ToLower(s)

	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return s, true
	case strings.HasPrefix(s, "//"):
		return "https:" + s, true
	case !strings.Contains(s, "://") && strings.Contains(s, "."):
		return "https://" + s, true
	default:
		return "", false
	}
}
