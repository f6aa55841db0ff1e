package form

// FieldState is the settled view of a single field handed to an OnSettled
// hook: the value just written plus the field's error and metadata as they
// stand once the write (and any validation pass) has completed.
type FieldState struct {
	Value any
	Error string
	Meta  map[string]any
}

// setFieldConfig collects the per-call options of SetField.
type setFieldConfig struct {
	skipValidation bool
	onSettled      func(FieldState)
}

// SetFieldOption configures a single SetField call.
type SetFieldOption func(*setFieldConfig)

// SkipValidation writes the field without triggering a validation pass.
func SkipValidation() SetFieldOption {
	return func(c *setFieldConfig) {
		c.skipValidation = true
	}
}

// OnSettled registers a hook invoked after the write and any validation
// pass have settled. Combined with SkipValidation the hook fires right
// after the write, seeing whatever error the field already had. The hook is
// not invoked when the write is a no-op.
func OnSettled(fn func(FieldState)) SetFieldOption {
	return func(c *setFieldConfig) {
		c.onSettled = fn
	}
}
