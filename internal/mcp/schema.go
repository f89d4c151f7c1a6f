package mcp

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// MissingParameterError reports a required tool argument that was absent or null.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter `%s`", e.Name)
}

// ReflectInputSchema derives a tool InputSchema from the argument struct A.
// Fields without omitempty are required; descriptions come from the
// jsonschema struct tag.
func ReflectInputSchema[A any]() (InputSchema, error) {
	// The reflector only expands structs; anything else cannot be an object.
	t := reflect.TypeOf((*A)(nil)).Elem()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return InputSchema{}, errors.Errorf("arguments type %s does not reflect to an object schema", t)
	}

	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	s := r.ReflectFromType(t)
	if s == nil || s.Type != "object" {
		return InputSchema{}, errors.Errorf("arguments type %s does not reflect to an object schema", t)
	}

	props := make(map[string]Property)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = Property{Type: el.Value.Type, Description: el.Value.Description}
		}
	}
	required := make([]string, 0, len(s.Required))
	required = append(required, s.Required...)

	schema := InputSchema{Type: "object", Properties: props, Required: required}
	if err := schema.Validate(); err != nil {
		return InputSchema{}, err
	}
	return schema, nil
}

// MustReflectInputSchema is ReflectInputSchema for package-level tool
// definitions; it panics on a malformed argument type.
func MustReflectInputSchema[A any]() InputSchema {
	s, err := ReflectInputSchema[A]()
	if err != nil {
		panic(err)
	}
	return s
}

// DecodeArguments checks raw against the required list of schema and decodes
// it into A. Absent arguments are treated as an empty object.
func DecodeArguments[A any](raw json.RawMessage, schema InputSchema) (A, error) {
	var a A
	if len(raw) == 0 || isNull(raw) {
		raw = json.RawMessage(`{}`)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return a, errors.New("arguments must be a JSON object")
	}
	for _, name := range schema.Required {
		v, ok := fields[name]
		if !ok || isNull(v) {
			return a, &MissingParameterError{Name: name}
		}
	}

	if err := json.Unmarshal(raw, &a); err != nil {
		return a, errors.Wrap(err, "invalid arguments")
	}
	return a, nil
}
