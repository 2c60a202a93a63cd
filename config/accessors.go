package config

// GetString reads a key outside the typed sections, e.g. "app.version" or
// "sandbox.keysecret", falling back to defaultVal when it is unset.
func (c *Config) GetString(key string, defaultVal ...string) string {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		return optionalDefault("", defaultVal...)
	}
	return c.k.String(key)
}

// Exists reports whether any source set key.
func (c *Config) Exists(key string) bool {
	if c == nil || c.k == nil {
		return false
	}
	return c.k.Exists(key)
}

func optionalDefault[T any](zero T, overrides ...T) T {
	if len(overrides) > 0 {
		return overrides[0]
	}
	return zero
}
