// Package schema adapts third-party schema validators to the form
// package's Validator interface.
package schema

import (
	"context"
	"strings"

	goskema "github.com/reoring/goskema"

	"github.com/formstore-dev/formstore/pkg/form"
)

// Goskema wraps a goskema object schema as a form.Validator.
//
// goskema collects every issue in a pass instead of stopping at the first,
// which is exactly the contract form.Validator demands. Issue paths are
// JSON Pointers ("/address/city"); they are rewritten to the dotted field
// paths the store uses ("address.city").
func Goskema(s goskema.Schema[map[string]any]) form.Validator {
	return goskemaValidator{schema: s}
}

type goskemaValidator struct {
	schema goskema.Schema[map[string]any]
}

func (v goskemaValidator) Validate(ctx context.Context, values map[string]any) error {
	err := v.schema.Validate(ctx, values)
	if err == nil {
		return nil
	}

	iss, ok := goskema.AsIssues(err)
	if !ok {
		// Not an issue list: pass through and let the store apply its
		// zero-field-errors default.
		return err
	}

	out := make(form.FieldErrors, 0, len(iss))
	for _, issue := range iss {
		out = append(out, form.FieldError{
			Path:    FieldPath(issue.Path),
			Message: issueMessage(issue),
		})
	}
	return out
}

// issueMessage prefers the human-readable message and falls back to the
// issue code when the message is empty.
func issueMessage(issue goskema.Issue) string {
	if issue.Message != "" {
		return issue.Message
	}
	return issue.Code
}

// FieldPath converts a JSON Pointer into the dotted path used for store
// fields: "/name" becomes "name", "/items/2/price" becomes
// "items.2.price". The root pointer maps to the empty string.
func FieldPath(pointer string) string {
	trimmed := strings.TrimPrefix(pointer, "/")
	if trimmed == "" {
		return ""
	}
	return strings.ReplaceAll(trimmed, "/", ".")
}
