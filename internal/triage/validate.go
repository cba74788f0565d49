package triage

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Fallback reasons produced when classifier output cannot be trusted.
const (
	ReasonUnparseable = "unparseable classifier response"
	ReasonUnavailable = "classifier unavailable"
)

// rawDecision mirrors the JSON shape the classifier is asked to produce.
// Fields stay strings so any out-of-band value survives parsing and can be
// rejected here instead of failing the decode.
type rawDecision struct {
	Action     *string `json:"action"`
	Reason     *string `json:"reason"`
	Confidence *string `json:"confidence"`
}

// Validate parses and validates a raw classifier payload into a Decision.
// It never fails outward: any malformed, incomplete, or out-of-band input
// degrades to the conservative fallback (ignore, Low) with a reason naming
// the violation. For well-formed payloads it is the identity transform.
func Validate(raw []byte) Decision {
	body := extractJSON(raw)
	if body == nil {
		return fallback(ReasonUnparseable)
	}

	var rd rawDecision
	if err := json.Unmarshal(body, &rd); err != nil {
		return fallback(ReasonUnparseable)
	}

	if rd.Action == nil {
		return fallback("missing field action")
	}
	if rd.Reason == nil {
		return fallback("missing field reason")
	}
	if rd.Confidence == nil {
		return fallback("missing field confidence")
	}

	action := Action(strings.ToLower(strings.TrimSpace(*rd.Action)))
	if !action.Valid() {
		return fallback("invalid action " + quote(*rd.Action))
	}

	d := Decision{
		Action: action,
		Reason: *rd.Reason,
	}

	switch strings.ToLower(strings.TrimSpace(*rd.Confidence)) {
	case "high":
		d.Confidence = ConfidenceHigh
	case "medium":
		d.Confidence = ConfidenceMedium
	case "low":
		d.Confidence = ConfidenceLow
	default:
		// Out-of-band confidence is normalized, not rejected.
		d.Confidence = ConfidenceLow
		d.Reason += " (confidence " + quote(*rd.Confidence) + " normalized to Low)"
	}

	return d
}

// Fallback returns the conservative decision substituted whenever
// classification input cannot be trusted.
func Fallback(reason string) Decision {
	return fallback(reason)
}

func fallback(reason string) Decision {
	return Decision{
		Action:     ActionIgnore,
		Reason:     reason,
		Confidence: ConfidenceLow,
	}
}

// extractJSON pulls the outermost {...} object out of a model response.
// Models occasionally wrap the JSON in prose or code fences; everything
// outside the braces is discarded. Returns nil when no object is present.
func extractJSON(raw []byte) []byte {
	s := string(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return nil
	}
	return []byte(s[start : end+1])
}

// quote truncates pathological values before embedding them in a reason.
func quote(s string) string {
	const max = 64
	if len(s) > max {
		s = s[:max]
	}
	return strconv.Quote(s)
}
