// Package functions runs external function providers: executables that
// describe one callable function when invoked with the argument "spec" and
// execute it when invoked with a JSON object on stdin.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ziadkadry99/funcall/internal/config"
	"github.com/ziadkadry99/funcall/internal/llm"
)

// SpecArg is the single argument that asks a provider for its spec.
const SpecArg = "spec"

// Registry maps function names to the providers that implement them.
type Registry struct {
	providers []config.ProviderConfig
	byName    map[string]config.ProviderConfig
	overrides map[string]config.FunctionOverride
	timeout   time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	specs   []llm.FunctionSpec
	schemas map[string]*jsonschema.Schema
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout bounds every provider process. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithLogger sets the logger for provider activity.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Load validates provider definitions and builds a Registry. Every provider
// needs a name and a command, and names must be unique. Overrides must name
// a configured provider.
func Load(providers []config.ProviderConfig, overrides []config.FunctionOverride, opts ...Option) (*Registry, error) {
	for i, p := range providers {
		if strings.TrimSpace(p.Name) == "" {
			return nil, config.Errorf("providers[%d]: name must not be empty", i)
		}
		if strings.TrimSpace(p.Command) == "" {
			return nil, config.Errorf("provider %s: command must not be empty", p.Name)
		}
	}
	if dups := lo.FindDuplicatesBy(providers, func(p config.ProviderConfig) string { return p.Name }); len(dups) > 0 {
		return nil, config.Errorf("provider %s: duplicate name", dups[0].Name)
	}

	r := &Registry{
		providers: providers,
		byName:    lo.KeyBy(providers, func(p config.ProviderConfig) string { return p.Name }),
		overrides: make(map[string]config.FunctionOverride, len(overrides)),
	}
	for _, o := range overrides {
		if _, ok := r.byName[o.Name]; !ok {
			return nil, config.Errorf("function override %q has no matching provider", o.Name)
		}
		if _, ok := r.overrides[o.Name]; ok {
			return nil, config.Errorf("function override %q is defined twice", o.Name)
		}
		r.overrides[o.Name] = o
	}

	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r, nil
}

// Names returns the configured function names in configuration order.
func (r *Registry) Names() []string {
	return lo.Map(r.providers, func(p config.ProviderConfig, _ int) string { return p.Name })
}

// Specs queries every provider for its function spec, in configuration
// order. The first successful result is cached for the registry's lifetime.
// A provider that cannot answer yields a *SpecError; a spec whose name
// differs from the configured name is a configuration error.
func (r *Registry) Specs(ctx context.Context) ([]llm.FunctionSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.specs != nil {
		return append([]llm.FunctionSpec(nil), r.specs...), nil
	}

	specs := make([]llm.FunctionSpec, 0, len(r.providers))
	schemas := make(map[string]*jsonschema.Schema, len(r.providers))
	for _, p := range r.providers {
		spec, schema, err := r.querySpec(ctx, p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
		schemas[spec.Name] = schema
	}

	r.specs = specs
	r.schemas = schemas
	return append([]llm.FunctionSpec(nil), specs...), nil
}

func (r *Registry) querySpec(ctx context.Context, p config.ProviderConfig) (llm.FunctionSpec, *jsonschema.Schema, error) {
	r.logger.Debug("querying provider spec", "provider", p.Name, "command", p.Command)

	args := append(append([]string(nil), p.Args...), SpecArg)
	out, err := r.run(ctx, p, args, nil)
	if err != nil {
		return llm.FunctionSpec{}, nil, &SpecError{Provider: p.Name, Err: err}
	}

	spec, err := parseSpec(out)
	if err != nil {
		return llm.FunctionSpec{}, nil, &SpecError{Provider: p.Name, Err: err}
	}
	if spec.Name != p.Name {
		return llm.FunctionSpec{}, nil, errors.WithHintf(
			config.Errorf("provider %s reports function name %q", p.Name, spec.Name),
			"rename the provider entry to %q or fix the provider's spec output", spec.Name,
		)
	}

	if o, ok := r.overrides[p.Name]; ok {
		if spec, err = applyOverride(spec, o); err != nil {
			return llm.FunctionSpec{}, nil, &SpecError{Provider: p.Name, Err: err}
		}
	}

	schema, err := compileSchema(spec.Name, spec.Parameters)
	if err != nil {
		return llm.FunctionSpec{}, nil, &SpecError{Provider: p.Name, Err: err}
	}
	return spec, schema, nil
}

// Invoke runs the provider of function name with arguments on its stdin and
// returns its stdout, which must be a single JSON value. Arguments must be a
// JSON object; once Specs has run they are also checked against the
// function's parameter schema. Every failure is an *ExecutionError. Results
// are never cached.
func (r *Registry) Invoke(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, &ExecutionError{Function: name, Err: errors.Newf("no provider for function %q", name)}
	}

	var args any
	if err := decodeSingle(arguments, &args); err != nil {
		return nil, &ExecutionError{Function: name, Err: errors.Wrap(err, "arguments")}
	}
	if _, isObject := args.(map[string]any); !isObject {
		return nil, &ExecutionError{Function: name, Err: errors.New("arguments must be a JSON object")}
	}

	if schema := r.schema(name); schema != nil {
		if err := schema.Validate(args); err != nil {
			return nil, &ExecutionError{Function: name, Err: errors.Wrap(err, "arguments do not match the parameter schema")}
		}
	}

	r.logger.Debug("invoking provider", "function", name, "command", p.Command)

	out, err := r.run(ctx, p, p.Args, bytes.TrimSpace(arguments))
	if err != nil {
		return nil, &ExecutionError{Function: name, Err: err}
	}

	result := bytes.TrimSpace(out)
	var decoded any
	if err := decodeSingle(result, &decoded); err != nil {
		return nil, &ExecutionError{Function: name, Err: err}
	}
	return json.RawMessage(result), nil
}

func (r *Registry) schema(name string) *jsonschema.Schema {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schemas[name]
}

func (r *Registry) run(ctx context.Context, p config.ProviderConfig, args []string, stdin []byte) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return run(ctx, p.Command, args, stdin)
}
