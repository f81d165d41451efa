// Package status maps raw probe outcomes onto the status categories reported
// for every verified link.
package status

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Category is the human-facing outcome of a single probe.
type Category string

const (
	CategoryInformational Category = "informational"
	CategoryActive        Category = "active"
	CategoryRedirect      Category = "redirect"
	CategoryClientError   Category = "client-error"
	CategoryServerError   Category = "server-error"

	CategoryInvalid           Category = "invalid"
	CategoryTimeout           Category = "timeout"
	CategoryConnectionRefused Category = "connection-refused"
	CategoryDNSFailure        Category = "dns-failure"
	CategoryTLSFailure        Category = "tls-failure"
	CategoryRateLimited       Category = "rate-limited"
	CategoryNetworkError      Category = "generic-network-error"
)

// ErrorKind is the machine-facing reason attached to error categories.
// It is empty for outcomes that carried a status code.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindInvalid           ErrorKind = "invalid"
	KindTimeout           ErrorKind = "timeout"
	KindConnectionRefused ErrorKind = "connection_refused"
	KindDNS               ErrorKind = "dns"
	KindTLS               ErrorKind = "tls"
	KindRateLimited       ErrorKind = "rate_limited"
	KindNetwork           ErrorKind = "network"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryActive,
	CategoryRedirect,
	CategoryInformational,
	CategoryClientError,
	CategoryServerError,
	CategoryTimeout,
	CategoryConnectionRefused,
	CategoryDNSFailure,
	CategoryTLSFailure,
	CategoryRateLimited,
	CategoryNetworkError,
	CategoryInvalid,
}

type categoryInfo struct {
	label string
	emoji string
	kind  ErrorKind
	isErr bool
}

var categoryTable = map[Category]categoryInfo{
	CategoryInformational:     {label: "Informational", emoji: "ℹ️"},
	CategoryActive:            {label: "Active", emoji: "✅"},
	CategoryRedirect:          {label: "Redirect", emoji: "🔄"},
	CategoryClientError:       {label: "Client error", emoji: "⚠️"},
	CategoryServerError:       {label: "Server error", emoji: "❌"},
	CategoryInvalid:           {label: "Invalid", emoji: "❌", kind: KindInvalid, isErr: true},
	CategoryTimeout:           {label: "Timed out", emoji: "⌛", kind: KindTimeout, isErr: true},
	CategoryConnectionRefused: {label: "Cannot connect", emoji: "🔌", kind: KindConnectionRefused, isErr: true},
	CategoryDNSFailure:        {label: "DNS failure", emoji: "🌐", kind: KindDNS, isErr: true},
	CategoryTLSFailure:        {label: "TLS error", emoji: "🔒", kind: KindTLS, isErr: true},
	CategoryRateLimited:       {label: "Too many requests", emoji: "🆘", kind: KindRateLimited, isErr: true},
	CategoryNetworkError:      {label: "Network error", emoji: "❌", kind: KindNetwork, isErr: true},
}

// Label returns the short human label for the category.
func (c Category) Label() string {
	if info, ok := categoryTable[c]; ok {
		return info.label
	}

	return "Unknown"
}

// Emoji returns the marker shown next to results of this category.
func (c Category) Emoji() string {
	if info, ok := categoryTable[c]; ok {
		return info.emoji
	}

	return "❓"
}

// Kind returns the error kind carried by an error category.
func (c Category) Kind() ErrorKind {
	return categoryTable[c].kind
}

// IsError reports whether no status code is obtainable for the category.
func (c Category) IsError() bool {
	return categoryTable[c].isErr
}

// IsSuccess reports whether the link counts as reachable.
func (c Category) IsSuccess() bool {
	return c == CategoryActive || c == CategoryRedirect
}

// Classify maps an HTTP status code onto a category.
func Classify(statusCode int) Category {
	switch {
	case statusCode < 200:
		return CategoryInformational
	case statusCode < 300:
		return CategoryActive
	case statusCode < 400:
		return CategoryRedirect
	case statusCode < 500:
		return CategoryClientError
	default:
		return CategoryServerError
	}
}

// errorRule matches a transport failure either by its concrete type or by
// the keywords found in its lower-cased message.
type errorRule struct {
	category Category
	match    func(err error) bool
	keywords []string
}

// errorRules are evaluated in order; the first match wins.
var errorRules = []errorRule{
	{
		category: CategoryTimeout,
		match:    isTimeout,
		keywords: []string{"timed out", "timeout", "deadline exceeded"},
	},
	{
		category: CategoryConnectionRefused,
		match:    func(err error) bool { return errors.Is(err, syscall.ECONNREFUSED) },
		keywords: []string{"cannot connect", "connection refused"},
	},
	{
		category: CategoryDNSFailure,
		match: func(err error) bool {
			var dnsErr *net.DNSError
			return errors.As(err, &dnsErr)
		},
		keywords: []string{"name not known", "service not known", "nodename nor servname", "no such host", "gaierror", "name resolution"},
	},
	{
		category: CategoryTLSFailure,
		match:    isTLS,
		keywords: []string{"ssl", "certificate", "tls"},
	},
	{
		category: CategoryRateLimited,
		keywords: []string{"too many"},
	},
}

// ClassifyError maps a transport failure onto an error category and kind.
func ClassifyError(err error) (Category, ErrorKind) {
	if err == nil {
		return CategoryNetworkError, KindNetwork
	}

	msg := strings.ToLower(failureText(err))

	for _, rule := range errorRules {
		if rule.match != nil && rule.match(err) {
			return rule.category, rule.category.Kind()
		}

		for _, kw := range rule.keywords {
			if strings.Contains(msg, kw) {
				return rule.category, rule.category.Kind()
			}
		}
	}

	return CategoryNetworkError, KindNetwork
}

// failureText drops the request URL from *url.Error messages so host names
// cannot trigger keyword rules.
func failureText(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}

	return err.Error()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTLS(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		certInvalid      x509.CertificateInvalidError
		recordHeader     tls.RecordHeaderError
		certVerify       *tls.CertificateVerificationError
	)

	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) ||
		errors.As(err, &recordHeader) ||
		errors.As(err, &certVerify)
}
