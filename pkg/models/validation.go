package models

// ValidationResult carries the outcome of sanitizing or validating untrusted
// input. It is transient: callers consume it immediately and discard it.
// Errors make the result unusable for persistence or execution; warnings are
// informational and the sanitized data remains usable.
type ValidationResult struct {
	Valid    bool     `json:"is_valid"`
	Data     any      `json:"data,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidationResult returns an empty, valid result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddError records a hard error and marks the result invalid.
func (r *ValidationResult) AddError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// AddWarning records a non-fatal finding.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
