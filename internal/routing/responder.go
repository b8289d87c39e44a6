package routing

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    ErrorEnvelopeMeta `json:"meta"`
}

type ErrorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// knownErrorMessages mirrors config/errors/catalog.yaml for codes whose
// callers pass a terse message.
var knownErrorMessages = map[string]string{
	"not_found":              "The requested resource was not found.",
	"method_not_allowed":     "This method is not allowed for the requested resource.",
	"internal_error":         "An unexpected error occurred. Please try again.",
	"artifact_not_found":     "The file has expired or does not exist.",
	"payload_too_large":      "The uploaded files exceed the size limit.",
	"company_required":       "Select a company before working with master data.",
	"company_not_found":      "The selected company does not exist.",
	"dependency_unavailable": "A backing service is unavailable.",
}

// WriteError writes the JSON error envelope. rc is echoed in X-Route-Class.
func WriteError(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Route-Class", string(rc))
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Code:    code,
		Message: normalizeErrorMessage(code, message),
		TraceID: traceIDFromRequest(r),
		Meta: ErrorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

// normalizeErrorMessage replaces machine-looking messages with readable ones.
func normalizeErrorMessage(code, message string) string {
	if !isGenericErrorMessage(code, message) {
		return message
	}
	if msg, ok := knownErrorMessages[code]; ok {
		return msg
	}
	if code == "" {
		return "Request failed."
	}
	return humanizeCode(code)
}

func isGenericErrorMessage(code, message string) bool {
	m := strings.TrimSpace(message)
	if m == "" || strings.EqualFold(m, code) {
		return true
	}
	if !strings.Contains(m, " ") && strings.Contains(m, "_") {
		return true
	}
	lower := strings.ToLower(m)
	return lower == "internal error" || lower == "not found" || lower == "method not allowed" ||
		(strings.HasSuffix(lower, " failed") && strings.Count(lower, " ") <= 2)
}

func humanizeCode(code string) string {
	words := strings.FieldsFunc(strings.ToLower(code), func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	if len(words) == 0 {
		return "Request failed."
	}
	s := strings.Join(words, " ")
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes) + "."
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
