// ABOUTME: Immutable capability registry: built once from definitions, validated,
// ABOUTME: then read concurrently by every session without locking.

package capability

import (
	"fmt"
	"regexp"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// Registry is the process-wide table of invocable capabilities. It is
// immutable after New returns: there is no registration or mutation path,
// which is what makes lock-free concurrent reads safe.
type Registry struct {
	ordered []Capability
	byName  map[string]int
}

// New validates the definitions and freezes them into a Registry. Definition
// order is preserved and is the order listings are returned in.
func New(defs []Capability) (*Registry, error) {
	r := &Registry{
		ordered: make([]Capability, 0, len(defs)),
		byName:  make(map[string]int, len(defs)),
	}

	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("capability with empty name")
		}
		if _, exists := r.byName[def.Name]; exists {
			return nil, fmt.Errorf("capability %q: duplicate name", def.Name)
		}
		if !trust.Valid(def.MinTrust) {
			return nil, fmt.Errorf("capability %q: unknown trust level %q", def.Name, def.MinTrust)
		}
		if def.Limit.MaxPerWindow <= 0 {
			return nil, fmt.Errorf("capability %q: max_per_window must be positive", def.Name)
		}
		if def.Limit.Window <= 0 {
			def.Limit.Window = DefaultWindow
		}
		if err := compileShape(&def.Input); err != nil {
			return nil, fmt.Errorf("capability %q: %w", def.Name, err)
		}

		r.byName[def.Name] = len(r.ordered)
		r.ordered = append(r.ordered, def)
	}

	return r, nil
}

// compileShape checks the input shape's internal consistency and compiles
// any declared string patterns.
func compileShape(shape *InputShape) error {
	for _, name := range shape.Required {
		if _, ok := shape.Fields[name]; !ok {
			return fmt.Errorf("required field %q has no declared type", name)
		}
	}
	for name, spec := range shape.Fields {
		switch spec.Type {
		case FieldString, FieldNumber, FieldBoolean:
		default:
			return fmt.Errorf("field %q: unknown type %q", name, spec.Type)
		}
		if spec.Type != FieldString && (len(spec.Enum) > 0 || spec.Pattern != "") {
			return fmt.Errorf("field %q: enum and pattern apply to string fields only", name)
		}
		if spec.Pattern != "" {
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				return fmt.Errorf("field %q: invalid pattern: %w", name, err)
			}
			spec.re = re
			shape.Fields[name] = spec
		}
	}
	return nil
}

// Get returns the named capability. The returned value is shared and must be
// treated as read-only.
func (r *Registry) Get(name string) (*Capability, error) {
	idx, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &r.ordered[idx], nil
}

// List returns every capability in registry order.
func (r *Registry) List() []*Capability {
	out := make([]*Capability, len(r.ordered))
	for i := range r.ordered {
		out[i] = &r.ordered[i]
	}
	return out
}

// ListForLevel returns, in registry order, the capabilities whose minimum
// trust level is satisfied by the given session level. An unknown level
// matches nothing.
func (r *Registry) ListForLevel(level trust.Level) []*Capability {
	var out []*Capability
	for i := range r.ordered {
		if level.AtLeast(r.ordered[i].MinTrust) {
			out = append(out, &r.ordered[i])
		}
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Names returns all capability names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i := range r.ordered {
		names[i] = r.ordered[i].Name
	}
	return names
}
