package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Validator validates a full value snapshot.
//
// Implementations must collect every field error in one pass rather than
// stopping at the first failure; a single invalid field must not hide
// errors on other fields.
//
// A nil return means the snapshot is valid. Failures carrying per-field
// detail are reported as FieldErrors (directly or wrapped); the store
// treats any other error as carrying zero field errors.
type Validator interface {
	Validate(ctx context.Context, values map[string]any) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, values map[string]any) error

func (f ValidatorFunc) Validate(ctx context.Context, values map[string]any) error {
	return f(ctx, values)
}

// FieldError is a single per-field validation failure.
type FieldError struct {
	Path    string
	Message string
}

// FieldErrors is an ordered collection of field failures that implements
// error. Order matters when two entries share a path: the later message
// wins in the reduced error map.
type FieldErrors []FieldError

// Error summarizes the first few failures.
func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := len(fe)
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", fe[i].Message, fe[i].Path)
	}
	if len(fe) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(fe))
	}
	return b.String()
}

// AsFieldErrors extracts FieldErrors from an error chain.
func AsFieldErrors(err error) (FieldErrors, bool) {
	if err == nil {
		return nil, false
	}
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Validate runs the active validator against a snapshot of the current
// values and replaces the error map with the outcome.
//
// With no validator set it returns nil and leaves the error map untouched.
// On success, or when the failure carries no per-field detail, the error
// map is cleared (emitting on TopicErrors only if it held entries) and an
// empty map is returned. On a FieldErrors failure the entries are reduced
// to a path→message map — the last entry wins on a repeated path — and
// applied through SetErrors, whose equality gate suppresses the emission
// when nothing changed.
//
// Values written between the snapshot and the validator's return are not
// re-validated, and a pass started against older values still applies its
// outcome when it settles. Overlapping passes are neither serialized nor
// cancelled; callers that need the error map to reflect a particular write
// await the Validate call issued after it.
func (s *Store) Validate(ctx context.Context) map[string]string {
	s.mu.RLock()
	v := s.validator
	snapshot := make(map[string]any, len(s.values))
	for k, val := range s.values {
		snapshot[k] = val
	}
	s.mu.RUnlock()

	if v == nil {
		return nil
	}

	err := v.Validate(ctx, snapshot)
	if err == nil {
		s.SetErrors(map[string]string{})
		return map[string]string{}
	}

	fieldErrs, ok := AsFieldErrors(err)
	if !ok {
		// A failure without per-field detail counts as zero field errors.
		s.SetErrors(map[string]string{})
		return map[string]string{}
	}

	next := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		next[fe.Path] = fe.Message
	}
	s.SetErrors(next)
	return next
}
