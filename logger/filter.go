package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"strings"
)

const (
	// DefaultMaskValue replaces sensitive values in log output.
	DefaultMaskValue = "***"
	// DefaultMaxDepth bounds recursion into nested maps and structs.
	DefaultMaxDepth = 8
)

// FilterConfig defines which fields are masked and with what.
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively as substrings of the key.
	SensitiveFields []string
	// PhoneFields are partially masked, keeping the last four digits.
	PhoneFields []string
	MaskValue   string
}

// DefaultFilterConfig covers the credentials that flow through a booking
// session: bearer tokens, one-time passwords and payment signatures.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"authorization", "cookie",
			"token", "otp", "password", "passwd",
			"secret", "signature", "api_key", "apikey",
		},
		PhoneFields: []string{"phone", "mobile"},
		MaskValue:   DefaultMaskValue,
	}
}

// SensitiveDataFilter masks values whose keys look sensitive.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a filter. A nil config selects DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks value if key is sensitive. Phone numbers keep their
// last four digits and URLs lose their password.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	switch {
	case f.isSensitiveField(key):
		return f.maskString(value)
	case f.isPhoneField(key):
		return f.maskPhone(value)
	case isURL(value):
		return f.maskURL(value)
	default:
		return value
	}
}

// FilterValue filters maps, header sets, slices and structs recursively.
// Structs are flattened to maps keyed by their json tag.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filterValue(key, value, DefaultMaxDepth)
}

// FilterFields filters every entry of fields.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = f.FilterValue(k, v)
	}
	return out
}

// FilterHeaders returns a copy of h with sensitive header values masked.
func (f *SensitiveDataFilter) FilterHeaders(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(h))
	for k, vs := range h {
		masked := make([]string, len(vs))
		for i, v := range vs {
			masked[i] = f.FilterString(k, v)
		}
		out[k] = masked
	}
	return out
}

// FilterJSON masks sensitive keys at any depth of a JSON document. ok is
// false when body is not a single JSON value.
func (f *SensitiveDataFilter) FilterJSON(body []byte) (out []byte, ok bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return nil, false
	}
	out, err := json.Marshal(f.FilterValue("", v))
	if err != nil {
		return nil, false
	}
	return out, true
}

func (f *SensitiveDataFilter) filterValue(key string, value any, depth int) any {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok {
		return f.FilterString(key, s)
	}
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if depth <= 0 {
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = f.filterValue(k, item, depth-1)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			out[k] = f.FilterString(k, item)
		}
		return out
	case http.Header:
		return f.FilterHeaders(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = f.filterValue(key, item, depth-1)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return value
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return value
	}
	return f.filterStruct(rv, depth)
}

func (f *SensitiveDataFilter) filterStruct(rv reflect.Value, depth int) map[string]any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())
	for i := range rt.NumField() {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(&field)
		if name == "-" {
			continue
		}
		out[name] = f.filterValue(name, rv.Field(i).Interface(), depth-1)
	}
	return out
}

func fieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	if idx := strings.Index(tag, ","); idx != -1 {
		tag = tag[:idx]
	}
	if tag == "" {
		return field.Name
	}
	return tag
}

func (f *SensitiveDataFilter) isSensitiveField(key string) bool {
	return matchesAny(key, f.config.SensitiveFields)
}

func (f *SensitiveDataFilter) isPhoneField(key string) bool {
	return matchesAny(key, f.config.PhoneFields)
}

func matchesAny(key string, candidates []string) bool {
	lower := strings.ToLower(key)
	for _, c := range candidates {
		if strings.Contains(lower, strings.ToLower(c)) {
			return true
		}
	}
	return false
}

func (f *SensitiveDataFilter) maskString(value string) string {
	if value == "" {
		return value
	}
	if isURL(value) {
		return f.maskURL(value)
	}
	return f.config.MaskValue
}

// maskPhone keeps the leading "+" and the last four digits.
func (f *SensitiveDataFilter) maskPhone(value string) string {
	if len(value) <= 4 {
		return f.config.MaskValue
	}
	prefix := ""
	if strings.HasPrefix(value, "+") {
		prefix = "+"
	}
	return prefix + f.config.MaskValue + value[len(value)-4:]
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") ||
		strings.HasPrefix(value, "https://") ||
		strings.HasPrefix(value, "redis://") ||
		strings.HasPrefix(value, "rediss://")
}

// maskURL replaces the password in the userinfo and any sensitive query
// parameters. Unparseable URLs are masked entirely.
func (f *SensitiveDataFilter) maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.config.MaskValue
	}
	changed := false
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "MASKED")
			changed = true
		}
	}
	if parsed.RawQuery != "" {
		q := parsed.Query()
		for k := range q {
			if f.isSensitiveField(k) {
				q.Set(k, "MASKED")
				changed = true
			}
		}
		if changed {
			parsed.RawQuery = q.Encode()
		}
	}
	if !changed {
		return raw
	}
	return strings.ReplaceAll(parsed.String(), "MASKED", f.config.MaskValue)
}
