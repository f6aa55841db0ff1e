// Package form provides a form-state container decoupled from any rendering
// layer.
//
// A Store holds three pieces of state for one form scope: field values,
// per-field metadata (touched, focused, ...) and validation errors. Mutations
// go through Set, SetField, SetFieldMeta and SetErrors; every change that
// survives the store's shallow-equality gate is published as a minimal delta
// on one of three bus topics (TopicValues, TopicProperties, TopicErrors).
// Subscribers receive only the keys that changed and decide locally whether
// they care.
//
// Validation is delegated to an injected Validator. The store snapshots its
// values, runs the validator, and reduces a FieldErrors failure into a
// field→message map that replaces the error map wholesale. Validators must
// report every failing field in one pass.
//
// Two projections sit on top of the store for UI consumers: Bind derives
// form-level validity, BindField caches a single field's value, metadata and
// error with controlled/uncontrolled invalidation semantics. Both take the
// store explicitly at construction; there is no ambient registry.
//
// Usage:
//
//	store := form.New(form.WithValidator(form.RuleSet{
//	    "email": {form.Required(""), form.Email("")},
//	}))
//
//	cancel := store.OnErrors(func(errs map[string]string) {
//	    // re-render error badges
//	})
//	defer cancel()
//
//	store.SetField(ctx, "email", "nope")
//	fmt.Println(store.Errors()["email"])
package form
