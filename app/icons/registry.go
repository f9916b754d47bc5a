package icons

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed icons.yml
var iconsData []byte

type Icon struct {
	Name     string   `yaml:"name" json:"name"`
	Label    string   `yaml:"label" json:"label"`
	Keywords []string `yaml:"keywords" json:"keywords,omitempty"`
}

type config struct {
	Default string `yaml:"default"`
	Icons   []Icon `yaml:"icons"`
}

// Registry is a read-only icon lookup table. It is built once and never
// changes afterwards.
type Registry struct {
	defaultName string
	icons       []Icon
	byName      map[string]Icon
}

var (
	once     sync.Once
	registry *Registry
	loadErr  error
)

// Get returns the process-wide registry, loading it on first use.
func Get() (*Registry, error) {
	once.Do(func() {
		registry, loadErr = Parse(iconsData)
		if loadErr == nil {
			slog.Debug("Icon registry loaded", "icons", len(registry.icons), "default", registry.defaultName)
		}
	})
	return registry, loadErr
}

// MustGet is Get for callers that cannot continue without icons.
func MustGet() *Registry {
	r, err := Get()
	if err != nil {
		panic(err)
	}
	return r
}

func Parse(data []byte) (*Registry, error) {
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	r := &Registry{
		defaultName: cfg.Default,
		byName:      make(map[string]Icon, len(cfg.Icons)),
	}

	for i, icon := range cfg.Icons {
		icon.Name = strings.TrimSpace(icon.Name)
		if icon.Name == "" {
			return nil, fmt.Errorf("icon at index %d has no name", i)
		}
		if _, dup := r.byName[icon.Name]; dup {
			return nil, fmt.Errorf("duplicate icon name: %s", icon.Name)
		}
		r.byName[icon.Name] = icon
		r.icons = append(r.icons, icon)
	}

	if _, ok := r.byName[r.defaultName]; !ok {
		return nil, fmt.Errorf("default icon '%s' is not defined", r.defaultName)
	}

	return r, nil
}

func (r *Registry) Default() string {
	return r.defaultName
}

func (r *Registry) Lookup(name string) (Icon, bool) {
	icon, ok := r.byName[name]
	return icon, ok
}

// Resolve returns name when it is a known icon and the default otherwise.
func (r *Registry) Resolve(name string) string {
	if _, ok := r.byName[name]; ok {
		return name
	}
	return r.defaultName
}

func (r *Registry) All() []Icon {
	out := make([]Icon, len(r.icons))
	copy(out, r.icons)
	return out
}

// Suggest picks an icon for a group name by keyword, falling back to the
// default.
func (r *Registry) Suggest(groupName string) string {
	words := strings.Fields(strings.ToLower(groupName))
	for _, icon := range r.icons {
		for _, w := range words {
			if w == icon.Name || containsFold(icon.Keywords, w) || strings.EqualFold(w, icon.Label) {
				return icon.Name
			}
		}
	}
	return r.defaultName
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
