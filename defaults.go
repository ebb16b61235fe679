package swcache

// coalesce fills an unset option or capture field with its fallback.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
