package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// Structured represents a type that can be used for structured output
type Structured interface {
	// Validate validates the structured output
	Validate() error
	// JSONSchema returns the JSON schema for this type
	JSONSchema() map[string]interface{}
}

// StructuredResponse contains the parsed and validated structured output
type StructuredResponse[T Structured] struct {
	Data        T                 `json:"data"`
	RawResponse *Response         `json:"raw_response,omitempty"`
	Usage       *Usage            `json:"usage,omitempty"`
	Validation  *ValidationResult `json:"validation,omitempty"`
}

// ValidationResult contains details about validation
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors,omitempty"`
	Retries int      `json:"retries"`
	RawJSON string   `json:"raw_json,omitempty"`
}

// ErrNoJSONObject is returned when a model reply carries no JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in output")

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// SchemaOf reflects a JSON schema from v's struct tags (json, jsonschema).
func SchemaOf(v interface{}) map[string]interface{} {
	r := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// ValidateStruct applies `validate` struct tags and reports every failing
// field as a MultiValidationError keyed by its JSON name.
func ValidateStruct(v interface{}) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	multi := &MultiValidationError{}
	for _, fe := range fieldErrs {
		multi.Add(fe.Field(), fe.Value(), fmt.Sprintf("failed on '%s' rule", fe.Tag()))
	}
	return multi.ErrorOrNil()
}

// ExtractJSON returns the outermost JSON object in raw, tolerating code
// fences and prose around it.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSONObject
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("%w: invalid JSON", ErrNoJSONObject)
	}
	return candidate, nil
}

// ParseJSONObject decodes the JSON object carried by raw, or returns nil
// and ErrNoJSONObject.
func ParseJSONObject(raw string) (map[string]interface{}, error) {
	js, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return nil, fmt.Errorf("json parsing error: %w", err)
	}
	return out, nil
}

// ParseStructured attempts to parse JSON into a structured type with validation
func ParseStructured[T Structured](raw string, template T) (*StructuredResponse[T], error) {
	var result T

	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	templateType := reflect.TypeOf(template)
	wantPtr := templateType.Kind() == reflect.Ptr
	if wantPtr {
		templateType = templateType.Elem()
	}

	ptrValue := reflect.New(templateType)
	if err := json.Unmarshal([]byte(jsonStr), ptrValue.Interface()); err != nil {
		return nil, fmt.Errorf("json parsing error: %w", err)
	}
	if wantPtr {
		result = ptrValue.Interface().(T)
	} else {
		result = ptrValue.Elem().Interface().(T)
	}

	validation := &ValidationResult{RawJSON: jsonStr}
	if err := result.Validate(); err != nil {
		validation.Errors = []string{err.Error()}
		return &StructuredResponse[T]{Data: result, Validation: validation}, fmt.Errorf("validation failed: %w", err)
	}
	validation.Valid = true
	return &StructuredResponse[T]{Data: result, Validation: validation}, nil
}
