// ABOUTME: TOML loading for the capability registry file.
// ABOUTME: File definitions are converted and validated through New like any other source.

package capability

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

type registryFile struct {
	Capabilities []fileCapability `toml:"capability"`
}

type fileCapability struct {
	Name        string    `toml:"name"`
	Description string    `toml:"description"`
	MinTrust    string    `toml:"min_trust"`
	Tags        []string  `toml:"tags"`
	Limit       fileLimit `toml:"limit"`
	Input       fileInput `toml:"input"`
}

type fileLimit struct {
	MaxPerWindow int    `toml:"max_per_window"`
	Window       string `toml:"window"`
}

type fileInput struct {
	Required []string             `toml:"required"`
	Fields   map[string]fileField `toml:"fields"`
}

type fileField struct {
	Type    string   `toml:"type"`
	Enum    []string `toml:"enum"`
	Pattern string   `toml:"pattern"`
}

// LoadFile reads capability definitions from a TOML file and freezes them
// into a Registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	var rf registryFile
	if _, err := toml.Decode(string(data), &rf); err != nil {
		return nil, fmt.Errorf("parsing registry file: %w", err)
	}
	if len(rf.Capabilities) == 0 {
		return nil, fmt.Errorf("registry file %s declares no capabilities", path)
	}

	defs := make([]Capability, 0, len(rf.Capabilities))
	for _, fc := range rf.Capabilities {
		def, err := fc.toCapability()
		if err != nil {
			return nil, fmt.Errorf("capability %q: %w", fc.Name, err)
		}
		defs = append(defs, def)
	}

	return New(defs)
}

func (fc fileCapability) toCapability() (Capability, error) {
	window := DefaultWindow
	if fc.Limit.Window != "" {
		d, err := time.ParseDuration(fc.Limit.Window)
		if err != nil {
			return Capability{}, fmt.Errorf("invalid limit.window: %w", err)
		}
		window = d
	}

	level, ok := trust.Parse(fc.MinTrust)
	if !ok {
		return Capability{}, fmt.Errorf("unknown min_trust %q", fc.MinTrust)
	}

	shape := InputShape{Required: fc.Input.Required}
	if len(fc.Input.Fields) > 0 {
		shape.Fields = make(map[string]FieldSpec, len(fc.Input.Fields))
		for name, ff := range fc.Input.Fields {
			shape.Fields[name] = FieldSpec{
				Type:    FieldType(ff.Type),
				Enum:    ff.Enum,
				Pattern: ff.Pattern,
			}
		}
	}

	return Capability{
		Name:        fc.Name,
		Description: fc.Description,
		Input:       shape,
		MinTrust:    level,
		Limit: RatePolicy{
			MaxPerWindow: fc.Limit.MaxPerWindow,
			Window:       window,
		},
		Tags: fc.Tags,
	}, nil
}
