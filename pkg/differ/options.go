package differ

// options collects Differ settings before the key and entity types are bound.
type options struct {
	ignoreFields   map[string]bool
	deepComparison bool
}

// Option is a functional option for configuring Differ
type Option func(*options)

// WithIgnoredFields sets fields to ignore during comparison. Nested fields
// use dotted paths such as "pricing.input".
func WithIgnoredFields(fields ...string) Option {
	return func(o *options) {
		for _, field := range fields {
			o.ignoreFields[field] = true
		}
	}
}

// WithDeepComparison enables/disables walking nested objects field by field
func WithDeepComparison(enabled bool) Option {
	return func(o *options) {
		o.deepComparison = enabled
	}
}
