package provider

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Schema is the JSON Schema subset sent with structured requests: typed
// objects, arrays of one item shape, required keys, and numeric bounds.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`

	// Order lists property names in declaration order. JSON Schema has no
	// ordering keyword, so it is carried separately for backends that do.
	Order []string `json:"-"`
}

// PropertyNames returns the property names in declaration order. Schemas built
// by hand without Order fall back to sorted names.
func (s *Schema) PropertyNames() []string {
	if len(s.Order) == len(s.Properties) {
		return s.Order
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaFromStruct derives a schema from a struct type. Property names come
// from json tags; a validate tag of the form "required,min=0,max=100" marks
// the property required and bounds numbers.
func SchemaFromStruct(t reflect.Type) *Schema {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: SchemaFromStruct(t.Elem())}
	case reflect.Map:
		return &Schema{Type: "object"}
	case reflect.Struct:
	default:
		return &Schema{}
	}

	s := &Schema{Type: "object", Properties: make(map[string]*Schema)}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, ok := jsonName(field)
		if !ok {
			continue
		}
		prop := SchemaFromStruct(field.Type)
		prop.Description = field.Tag.Get("description")
		if applyRules(prop, field.Tag.Get("validate")) {
			s.Required = append(s.Required, name)
		}
		s.Properties[name] = prop
		s.Order = append(s.Order, name)
	}
	return s
}

func jsonName(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", false
	}
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return field.Name, true
}

// applyRules copies min/max bounds onto s and reports whether the field is
// required.
func applyRules(s *Schema, tag string) bool {
	required := false
	for _, rule := range strings.Split(tag, ",") {
		key, val, _ := strings.Cut(strings.TrimSpace(rule), "=")
		switch key {
		case "required":
			required = true
		case "min", "max":
			n, err := strconv.ParseFloat(val, 64)
			if err != nil {
				continue
			}
			if key == "min" {
				s.Minimum = &n
			} else {
				s.Maximum = &n
			}
		}
	}
	return required
}

// ValidationResult lists every violation found; Valid is true when there are
// none.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// JSONSchemaValidator checks decoded structured output against a Schema.
// Strict validators also reject properties the schema does not declare.
type JSONSchemaValidator struct {
	strictMode bool
}

// NewJSONSchemaValidator creates a validator.
func NewJSONSchemaValidator(strict bool) *JSONSchemaValidator {
	return &JSONSchemaValidator{strictMode: strict}
}

// ValidateJSON decodes raw and validates it against schema.
func (v *JSONSchemaValidator) ValidateJSON(schema *Schema, raw []byte) (*ValidationResult, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode structured output: %w", err)
	}
	return v.Validate(schema, data), nil
}

// Validate checks data, as decoded by encoding/json, against schema.
func (v *JSONSchemaValidator) Validate(schema *Schema, data any) *ValidationResult {
	w := &schemaWalk{strict: v.strictMode}
	w.value(schema, data, "")
	return &ValidationResult{Valid: len(w.errs) == 0, Errors: w.errs}
}

type schemaWalk struct {
	strict bool
	errs   []string
}

func (w *schemaWalk) fail(path, format string, args ...any) {
	if path == "" {
		path = "root"
	}
	w.errs = append(w.errs, path+": "+fmt.Sprintf(format, args...))
}

func (w *schemaWalk) value(s *Schema, val any, path string) {
	if s == nil || s.Type == "" {
		return
	}
	switch s.Type {
	case "object":
		obj, ok := val.(map[string]any)
		if !ok {
			w.fail(path, "expected object, got %s", jsonKind(val))
			return
		}
		w.object(s, obj, path)
	case "array":
		items, ok := val.([]any)
		if !ok {
			w.fail(path, "expected array, got %s", jsonKind(val))
			return
		}
		for i, item := range items {
			w.value(s.Items, item, fmt.Sprintf("%s[%d]", path, i))
		}
	case "number", "integer":
		n, ok := val.(float64)
		if !ok {
			w.fail(path, "expected %s, got %s", s.Type, jsonKind(val))
			return
		}
		if s.Type == "integer" && n != float64(int64(n)) {
			w.fail(path, "expected integer, got %v", n)
			return
		}
		if s.Minimum != nil && n < *s.Minimum {
			w.fail(path, "%v is below minimum %v", n, *s.Minimum)
		}
		if s.Maximum != nil && n > *s.Maximum {
			w.fail(path, "%v is above maximum %v", n, *s.Maximum)
		}
	case "string":
		if _, ok := val.(string); !ok {
			w.fail(path, "expected string, got %s", jsonKind(val))
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			w.fail(path, "expected boolean, got %s", jsonKind(val))
		}
	}
}

func (w *schemaWalk) object(s *Schema, obj map[string]any, path string) {
	for _, name := range s.Required {
		if _, ok := obj[name]; !ok {
			w.fail(path, "missing required field %q", name)
		}
	}
	for _, name := range s.PropertyNames() {
		if val, ok := obj[name]; ok {
			w.value(s.Properties[name], val, joinPath(path, name))
		}
	}
	if !w.strict {
		return
	}
	extra := make([]string, 0)
	for name := range obj {
		if _, ok := s.Properties[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		w.fail(path, "unknown property %q", name)
	}
}

func jsonKind(val any) string {
	switch val.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", val)
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
