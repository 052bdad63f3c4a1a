package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorKind classifies failures of API calls
type ErrorKind int

const (
	// KindValidation means required local input was missing; no request was sent
	KindValidation ErrorKind = iota + 1
	// KindUnauthorized means the server rejected the credentials (401/403)
	KindUnauthorized
	// KindTransport means the request never completed or the response was malformed
	KindTransport
	// KindServer is any other non-2xx response
	KindServer
	// KindStaleSession means the session changed while the request was in flight
	KindStaleSession
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindStaleSession:
		return "stale session"
	default:
		return "unknown"
	}
}

// Error is returned by every API call in this package and in media
type Error struct {
	Kind    ErrorKind
	Op      string // e.g. "list media"
	Status  int    // HTTP status, 0 when no response
	Message string // best-effort human readable message
	Body    string // raw response body, kept for diagnostics
	Err     error
}

// Sentinels for errors.Is. Only Kind is compared.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrTransport    = &Error{Kind: KindTransport}
	ErrServer       = &Error{Kind: KindServer}
	ErrStaleSession = &Error{Kind: KindStaleSession}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, "(status %d) ", e.Status)
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String() + " error")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// IsAuthStatus reports whether the status code invalidates the session
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// classify builds the error for a non-2xx response
func classify(op string, status int, body []byte) *Error {
	kind := KindServer
	if IsAuthStatus(status) {
		kind = KindUnauthorized
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Status:  status,
		Message: ExtractMessage(body, http.StatusText(status)),
		Body:    string(body),
	}
}

// ExtractMessage pulls a readable message out of an API error body.
//
// Recognised shapes, in order: {"detail": "..."}, {"error": "..."},
// {"message": "..."}, {"non_field_errors": ["..."]} and field maps such as
// {"title": ["This field is required."]}. Anything else falls back to the
// trimmed body, and an empty body to fallback.
func ExtractMessage(body []byte, fallback string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" || strings.HasPrefix(text, "<") {
			return fallback
		}
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		return text
	}

	for _, key := range []string{"detail", "error", "message"} {
		if msg := firstString(fields[key]); msg != "" {
			return msg
		}
	}
	if msg := firstString(fields["non_field_errors"]); msg != "" {
		return msg
	}

	// Field errors: report the first field alphabetically for stable output
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if msg := firstString(fields[k]); msg != "" {
			return fmt.Sprintf("%s: %s", k, msg)
		}
	}

	return fallback
}

// FieldError returns the first message reported for field, if any
func FieldError(body []byte, field string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	return firstString(fields[field])
}

// firstString accepts either "msg" or ["msg", ...]
func firstString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}
