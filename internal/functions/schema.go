package functions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"dario.cat/mergo"
	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ziadkadry99/funcall/internal/config"
	"github.com/ziadkadry99/funcall/internal/llm"
)

// requiredSpecKeys are the fields every spec document must carry.
var requiredSpecKeys = []string{"name", "description", "parameters"}

// parseSpec decodes provider output into a FunctionSpec. The output must be
// exactly one JSON object carrying name, description and an object-valued
// parameters field.
func parseSpec(out []byte) (llm.FunctionSpec, error) {
	var raw map[string]json.RawMessage
	if err := decodeSingle(out, &raw); err != nil {
		return llm.FunctionSpec{}, err
	}
	if raw == nil {
		return llm.FunctionSpec{}, errors.New("spec must be a JSON object")
	}
	for _, key := range requiredSpecKeys {
		if v, ok := raw[key]; !ok || string(v) == "null" {
			return llm.FunctionSpec{}, errors.Newf("spec is missing %q", key)
		}
	}

	var spec llm.FunctionSpec
	if err := json.Unmarshal(raw["name"], &spec.Name); err != nil {
		return llm.FunctionSpec{}, errors.Wrap(err, "spec name")
	}
	if err := json.Unmarshal(raw["description"], &spec.Description); err != nil {
		return llm.FunctionSpec{}, errors.Wrap(err, "spec description")
	}
	if err := json.Unmarshal(raw["parameters"], &spec.Parameters); err != nil {
		return llm.FunctionSpec{}, errors.Wrap(err, "spec parameters must be a JSON object")
	}
	if spec.Parameters == nil {
		spec.Parameters = map[string]any{}
	}
	return spec, nil
}

// decodeSingle unmarshals exactly one JSON value from data into v.
func decodeSingle(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "output is not valid JSON")
	}
	if dec.More() {
		return errors.New("output holds more than one JSON value")
	}
	return nil
}

// applyOverride merges a configured override into spec: a non-empty
// description replaces the reported one and parameters merge key by key,
// the override winning.
func applyOverride(spec llm.FunctionSpec, o config.FunctionOverride) (llm.FunctionSpec, error) {
	if o.Description != "" {
		spec.Description = o.Description
	}
	if len(o.Parameters) > 0 {
		if spec.Parameters == nil {
			spec.Parameters = map[string]any{}
		}
		if err := mergo.Merge(&spec.Parameters, o.Parameters, mergo.WithOverride); err != nil {
			return spec, errors.Wrap(err, "merging parameter override")
		}
	}
	return spec, nil
}

// compileSchema compiles a function's parameters as a JSON Schema.
func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "encoding parameters")
	}

	url := fmt.Sprintf("functions/%s.json", name)
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, "parameters are not a valid JSON Schema")
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, errors.Wrap(err, "parameters are not a valid JSON Schema")
	}
	return schema, nil
}
