package handler

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"extblock/pkg/registry"
)

const maxRequestBody = 4 << 10

//go:embed schema/custom_extension_request.schema.json
var customRequestSchema []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func requestSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(customRequestSchema))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("custom_extension_request.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("custom_extension_request.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// fieldError is a request that failed schema validation before reaching the
// registry.
type fieldError struct {
	Key    registry.FieldKey
	Detail string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Key, e.Detail)
}

// decodeCustomRequest reads and validates the add-custom body, returning the
// raw extension string.
func decodeCustomRequest(body io.Reader) (string, error) {
	schema, err := requestSchema()
	if err != nil {
		return "", err
	}

	inst, err := jsonschema.UnmarshalJSON(io.LimitReader(body, maxRequestBody))
	if err != nil {
		return "", &fieldError{Key: registry.FieldInvalid, Detail: err.Error()}
	}

	if err := schema.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return "", fmt.Errorf("validate request: %w", err)
		}
		return "", &fieldError{Key: fieldKeyFor(ve), Detail: ve.Error()}
	}

	obj, _ := inst.(map[string]any)
	ext, _ := obj["extension"].(string)
	return ext, nil
}

// fieldKeyFor picks the message for the first leaf failure.
func fieldKeyFor(ve *jsonschema.ValidationError) registry.FieldKey {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.ErrorKind == nil {
		return registry.FieldInvalid
	}
	kw := ve.ErrorKind.KeywordPath()
	if len(kw) == 0 {
		return registry.FieldInvalid
	}
	switch kw[len(kw)-1] {
	case "maxLength":
		return registry.FieldTooLong
	case "required", "pattern", "type":
		return registry.FieldRequired
	default:
		return registry.FieldInvalid
	}
}
