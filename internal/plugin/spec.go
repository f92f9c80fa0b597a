// Package plugin defines the probe contract and the process-wide registry.
package plugin

import "fmt"

// Kind identifies the shape a spec field's values must take.
type Kind int

const (
	// KindInt is an integer-valued field.
	KindInt Kind = iota
	// KindFloat is a floating point field.
	KindFloat
	// KindBool is a boolean field.
	KindBool
	// KindText is a string field.
	KindText
	// KindDict is a nested mapping field.
	KindDict
	// KindAny accepts any JSON-marshalable value.
	KindAny
	// KindList wraps another Kind, meaning "list of T". Elem holds the
	// wrapped Kind; List of List is not supported (matches the source
	// spec's "singleton list containing one of those" rule).
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindDict:
		return "dict"
	case KindAny:
		return "any"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// FieldType is a single spec field declaration: a primitive, a list of a
// primitive, a dict, or any. Elem is only meaningful when Kind == KindList.
type FieldType struct {
	Kind Kind
	Elem Kind
}

// Primitive builds a FieldType for a bare primitive kind.
func Primitive(k Kind) FieldType { return FieldType{Kind: k} }

// ListOf builds a FieldType for "list of elem".
func ListOf(elem Kind) FieldType { return FieldType{Kind: KindList, Elem: elem} }

// Any is the FieldType that accepts any value.
func Any() FieldType { return FieldType{Kind: KindAny} }

// Spec is a plugin's declared item shape: the key field name plus the
// field-name -> FieldType mapping every item must validate against.
type Spec struct {
	KeyField string
	Fields   map[string]FieldType
}

// checkValue structurally folds value against ft, returning an error if it
// violates the declared type. nil always validates (a field may be absent
// or explicitly null).
func checkValue(ft FieldType, value interface{}) error {
	if value == nil {
		return nil
	}

	switch ft.Kind {
	case KindAny:
		return nil
	case KindInt:
		switch value.(type) {
		case int, int32, int64, float64:
			return nil
		}
		return fmt.Errorf("expected int, got %T", value)
	case KindFloat:
		switch value.(type) {
		case float32, float64, int, int64:
			return nil
		}
		return fmt.Errorf("expected float, got %T", value)
	case KindBool:
		if _, ok := value.(bool); ok {
			return nil
		}
		return fmt.Errorf("expected bool, got %T", value)
	case KindText:
		if _, ok := value.(string); ok {
			return nil
		}
		return fmt.Errorf("expected text, got %T", value)
	case KindDict:
		if _, ok := value.(map[string]interface{}); ok {
			return nil
		}
		return fmt.Errorf("expected dict, got %T", value)
	case KindList:
		list, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("expected list, got %T", value)
		}
		elem := FieldType{Kind: ft.Elem}
		for i, v := range list {
			if err := checkValue(elem, v); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown field kind %v", ft.Kind)
	}
}
