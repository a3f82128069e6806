// Package effects loads the effects capability table: the set of
// transform/effect fields the timeline accepts, their value ranges,
// defaults, and (for string fields) an accepted-value pattern.
//
// The table is loaded once at startup from effects.yaml, with an
// embed-with-env-override shape: an operator can point EFFECTS_SPEC_PATH
// at a replacement file; absent that, the file embedded in the binary is
// used.
package effects

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/clipstream/timeline-core/internal/logger"
)

const capabilitiesEnv = "EFFECTS_SPEC_PATH"

//go:embed effects.yaml
var capabilitiesFS embed.FS

// ParamSpec describes one accepted field of a clip's transform or
// effects block.
type ParamSpec struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"` // "number", "bool", "string"
	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
	Default any      `yaml:"default,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"` // regex, only meaningful for type=string
}

// Capability is the parameter set accepted for one effect group
// ("transform" or "effects").
type Capability struct {
	Name   string      `yaml:"name"`
	Params []ParamSpec `yaml:"params"`
}

func (c Capability) paramNames() map[string]struct{} {
	names := make(map[string]struct{}, len(c.Params))
	for _, p := range c.Params {
		names[p.Name] = struct{}{}
	}
	return names
}

type yamlFile struct {
	Groups []Capability `yaml:"groups"`
}

// Table is the read-only, validated EFFECTS_CAPABILITIES set exposed by
// /capabilities and consulted by the mutation handlers to drop unknown
// sub-fields on write.
type Table struct {
	groups  map[string]Capability
	order   []string
	cleanRe map[string]*regexp.Regexp
}

func (t *Table) Get(group string) (Capability, bool) {
	c, ok := t.groups[group]
	return c, ok
}

// List returns capabilities in stable, declared order for serving over
// /capabilities.
func (t *Table) List() []Capability {
	out := make([]Capability, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.groups[name])
	}
	return out
}

// Sanitize drops any key of raw not named in the group's param table.
// Unknown effect/transform sub-fields are accepted on the wire but
// silently dropped before persisting, per the forward-compatibility
// rule: older capability tables must not reject payloads written by a
// newer client.
func (t *Table) Sanitize(group string, raw map[string]any) map[string]any {
	capa, ok := t.groups[group]
	if !ok || raw == nil {
		return raw
	}
	names := capa.paramNames()
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if _, known := names[k]; known {
			out[k] = v
		}
	}
	return out
}

// ValidateValue checks a known param's value against its declared
// range/pattern. ok=false with a non-nil reason means the field is
// present but out of bounds; callers treat that as a validation error
// rather than silently dropping it, since the field name itself is
// known-good.
func (t *Table) ValidateValue(group, param string, value any) (ok bool, reason string) {
	capa, found := t.groups[group]
	if !found {
		return true, ""
	}
	var spec *ParamSpec
	for i := range capa.Params {
		if capa.Params[i].Name == param {
			spec = &capa.Params[i]
			break
		}
	}
	if spec == nil {
		return true, ""
	}
	switch spec.Type {
	case "number":
		f, isNum := toFloat(value)
		if !isNum {
			return false, fmt.Sprintf("%s.%s: expected number", group, param)
		}
		if spec.Min != nil && f < *spec.Min {
			return false, fmt.Sprintf("%s.%s: %.4f below minimum %.4f", group, param, f, *spec.Min)
		}
		if spec.Max != nil && f > *spec.Max {
			return false, fmt.Sprintf("%s.%s: %.4f above maximum %.4f", group, param, f, *spec.Max)
		}
	case "string":
		s, isStr := value.(string)
		if !isStr {
			return false, fmt.Sprintf("%s.%s: expected string", group, param)
		}
		if re := t.cleanRe[group+"."+param]; re != nil && !re.MatchString(s) {
			return false, fmt.Sprintf("%s.%s: %q does not match pattern %s", group, param, s, spec.Pattern)
		}
	}
	return true, ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

var (
	loadOnce  sync.Once
	loadCache *Table
	loadErr   error
)

// LoadFromEnv loads the table once per process (subsequent calls
// return the cached result), reading EFFECTS_SPEC_PATH when
// set or the embedded default otherwise.
func LoadFromEnv(log *logger.Logger) (*Table, error) {
	loadOnce.Do(func() {
		loadCache, loadErr = load(readCapabilitiesFile)
		if loadErr != nil && log != nil {
			log.Error("effects: capability table load failed", "error", loadErr)
		}
	})
	return loadCache, loadErr
}

// Load reads and validates a capability table from an explicit path,
// bypassing the process-wide cache. Intended for tests and tools that
// need an isolated table.
func Load(path string) (*Table, error) {
	return load(func() ([]byte, error) { return os.ReadFile(path) })
}

func load(read func() ([]byte, error)) (*Table, error) {
	data, err := read()
	if err != nil {
		return nil, err
	}
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if err := validate(&file); err != nil {
		return nil, err
	}

	groups := make(map[string]Capability, len(file.Groups))
	order := make([]string, 0, len(file.Groups))
	cleanRe := make(map[string]*regexp.Regexp)
	for _, g := range file.Groups {
		groups[g.Name] = g
		order = append(order, g.Name)
		for _, p := range g.Params {
			if p.Type == "string" && p.Pattern != "" {
				re, err := regexp.Compile(p.Pattern)
				if err != nil {
					return nil, fmt.Errorf("group %s param %s: bad pattern: %w", g.Name, p.Name, err)
				}
				cleanRe[g.Name+"."+p.Name] = re
			}
		}
	}
	return &Table{groups: groups, order: order, cleanRe: cleanRe}, nil
}

func readCapabilitiesFile() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(capabilitiesEnv)); path != "" {
		return os.ReadFile(path)
	}
	return capabilitiesFS.ReadFile("effects.yaml")
}

func validate(file *yamlFile) error {
	if file == nil || len(file.Groups) == 0 {
		return errors.New("effects: capability table has no groups")
	}
	seen := map[string]bool{}
	for _, g := range file.Groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return errors.New("effects: group name is required")
		}
		if seen[name] {
			return fmt.Errorf("effects: duplicate group %s", name)
		}
		seen[name] = true
		params := map[string]bool{}
		for _, p := range g.Params {
			if strings.TrimSpace(p.Name) == "" {
				return fmt.Errorf("group %s: param name is required", name)
			}
			if params[p.Name] {
				return fmt.Errorf("group %s: duplicate param %s", name, p.Name)
			}
			params[p.Name] = true
			switch p.Type {
			case "number", "bool", "string":
			default:
				return fmt.Errorf("group %s param %s: unknown type %q", name, p.Name, p.Type)
			}
		}
	}
	return nil
}
