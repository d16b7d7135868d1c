// Package sanitize recursively validates and cleans untrusted JSON payloads
// before they reach workflow execution or persistence. Every value that leaves
// this package is a pure tree of strings, numbers, booleans, nulls, arrays and
// objects within configured depth and size bounds.
package sanitize

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/google/uuid"
)

// Default bounds applied when an Options field is zero.
const (
	DefaultMaxDepth        = 10
	DefaultMaxStringLength = 10000
	DefaultMaxArrayLength  = 1000
	DefaultMaxObjectKeys   = 100
)

// MaxSafeInteger is the largest integer magnitude preserved exactly; larger
// magnitudes are clamped, keeping the sign.
const MaxSafeInteger = int64(1)<<53 - 1

// Options bounds the sanitizer. Built once at startup and passed by value;
// the zero value of each field selects the default.
type Options struct {
	MaxDepth        int
	MaxStringLength int
	MaxArrayLength  int
	MaxObjectKeys   int
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}

	if o.MaxStringLength <= 0 {
		o.MaxStringLength = DefaultMaxStringLength
	}

	if o.MaxArrayLength <= 0 {
		o.MaxArrayLength = DefaultMaxArrayLength
	}

	if o.MaxObjectKeys <= 0 {
		o.MaxObjectKeys = DefaultMaxObjectKeys
	}

	return o
}

// Sanitizer cleans arbitrary decoded-JSON values against its options.
type Sanitizer struct {
	opts Options
}

// New creates a sanitizer with the given options.
func New(opts Options) *Sanitizer {
	return &Sanitizer{opts: opts.withDefaults()}
}

// NewDefault creates a sanitizer with default bounds.
func NewDefault() *Sanitizer {
	return New(Options{})
}

var (
	jsURIPattern        = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// ValidateTriggerData sanitizes an inbound trigger payload for the given
// tenant. An invalid organization id fails fast: attacker-controlled data is
// not walked at all when the tenant context itself is broken.
func (s *Sanitizer) ValidateTriggerData(data any, organizationID string) *models.ValidationResult {
	result := models.NewValidationResult()

	if _, err := uuid.Parse(organizationID); err != nil {
		result.AddError("organization_id must be a valid UUID")

		return result
	}

	result.Data = s.sanitizeValue(data, 0, "$", result)

	return result
}

// Value walks one value with the sanitizer's bounds, recording warnings on
// the given result. Exposed for callers that already hold tenant context.
func (s *Sanitizer) Value(v any, result *models.ValidationResult) any {
	return s.sanitizeValue(v, 0, "$", result)
}

// String cleans one string with the sanitizer's bounds.
func (s *Sanitizer) String(str string, result *models.ValidationResult) string {
	return s.sanitizeString(str, "$", result)
}

// sanitizeValue is the recursive depth-first walk. It never panics and never
// loops: depth strictly increases and every branch terminates. The type switch
// is the closed set of decoded-JSON kinds; anything else becomes null with a
// warning so an unsanitized kind can never pass through silently.
func (s *Sanitizer) sanitizeValue(v any, depth int, path string, result *models.ValidationResult) any {
	if depth > s.opts.MaxDepth {
		result.AddWarning(fmt.Sprintf("%s: exceeds max depth %d, replaced with null", path, s.opts.MaxDepth))

		return nil
	}

	switch value := v.(type) {
	case nil:
		return nil
	case bool:
		return value
	case string:
		return s.sanitizeString(value, path, result)
	case float64:
		return s.sanitizeFloat(value, path, result)
	case float32:
		return s.sanitizeFloat(float64(value), path, result)
	case int:
		return clampInt(int64(value))
	case int32:
		return int64(value)
	case int64:
		return clampInt(value)
	case uint:
		return clampUint(uint64(value))
	case uint32:
		return int64(value)
	case uint64:
		return clampUint(value)
	case []any:
		return s.sanitizeArray(value, depth, path, result)
	case map[string]any:
		return s.sanitizeObject(value, depth, path, result)
	default:
		result.AddWarning(fmt.Sprintf("%s: unsupported value kind %T, replaced with null", path, v))

		return nil
	}
}

// sanitizeString escapes and strips first, then clamps: the length bound
// holds on the stored value, and a clamped value has nothing left to escape
// on a second pass.
func (s *Sanitizer) sanitizeString(str, path string, result *models.ValidationResult) string {
	str = strings.ReplaceAll(str, "<", "&lt;")
	str = strings.ReplaceAll(str, ">", "&gt;")
	str = stripPattern(str, jsURIPattern)
	str = stripPattern(str, eventHandlerPattern)

	if len(str) > s.opts.MaxStringLength {
		result.AddWarning(fmt.Sprintf("%s: string truncated to %d characters", path, s.opts.MaxStringLength))
		str = str[:s.opts.MaxStringLength]
	}

	return str
}

// stripPattern removes every match repeatedly: a single pass could splice two
// fragments into a fresh match ("jajavascript:vascript:").
func stripPattern(str string, pattern *regexp.Regexp) string {
	for pattern.MatchString(str) {
		str = pattern.ReplaceAllString(str, "")
	}

	return str
}

func (s *Sanitizer) sanitizeFloat(f float64, path string, result *models.ValidationResult) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		result.AddWarning(fmt.Sprintf("%s: non-finite number replaced with 0", path))

		return float64(0)
	}

	if f > float64(MaxSafeInteger) {
		return float64(MaxSafeInteger)
	}

	if f < -float64(MaxSafeInteger) {
		return -float64(MaxSafeInteger)
	}

	return f
}

func clampInt(n int64) int64 {
	if n > MaxSafeInteger {
		return MaxSafeInteger
	}

	if n < -MaxSafeInteger {
		return -MaxSafeInteger
	}

	return n
}

func clampUint(n uint64) int64 {
	if n > uint64(MaxSafeInteger) {
		return MaxSafeInteger
	}

	return int64(n)
}

func (s *Sanitizer) sanitizeArray(arr []any, depth int, path string, result *models.ValidationResult) []any {
	if len(arr) > s.opts.MaxArrayLength {
		result.AddWarning(fmt.Sprintf("%s: array truncated to %d elements", path, s.opts.MaxArrayLength))
		arr = arr[:s.opts.MaxArrayLength]
	}

	out := make([]any, len(arr))
	for i, elem := range arr {
		out[i] = s.sanitizeValue(elem, depth+1, fmt.Sprintf("%s[%d]", path, i), result)
	}

	return out
}

// sanitizeObject keeps at most MaxObjectKeys keys. Decoded-JSON maps carry no
// insertion order in Go, so keys are taken in sorted order to make truncation
// deterministic. Keys themselves are string-sanitized: injection via key names
// is as real as injection via values.
func (s *Sanitizer) sanitizeObject(obj map[string]any, depth int, path string, result *models.ValidationResult) map[string]any {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	if len(keys) > s.opts.MaxObjectKeys {
		result.AddWarning(fmt.Sprintf("%s: object truncated to %d keys", path, s.opts.MaxObjectKeys))
		keys = keys[:s.opts.MaxObjectKeys]
	}

	out := make(map[string]any, len(keys))

	for _, k := range keys {
		cleanKey := s.sanitizeString(k, path+"."+k, result)
		out[cleanKey] = s.sanitizeValue(obj[k], depth+1, path+"."+k, result)
	}

	return out
}
