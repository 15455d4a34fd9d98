package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServiceMeta holds static metadata for a managed service.
type ServiceMeta struct {
	Category   string `yaml:"category"`    // "stt" or "tts"
	HealthURL  string `yaml:"health_url"`   // URL to probe for readiness
	ControlURL string `yaml:"control_url"`  // URL of HTTP control server for start/stop/status
}

// Registry is a whitelist of services the orchestrator may manage.
type Registry struct {
	services map[string]ServiceMeta
}

// NewRegistry creates a registry from a map of service metadata.
func NewRegistry(services map[string]ServiceMeta) *Registry {
	return &Registry{services: services}
}

// servicesFile is the on-disk shape of services.yaml: a flat map of service
// name to its metadata, kept separate from gateway.json's tuning knobs since
// it describes infrastructure topology rather than call-handling behavior.
type servicesFile struct {
	Services map[string]ServiceMeta `yaml:"services"`
}

// LoadRegistry reads a services.yaml describing the STT/TTS sidecars this
// gateway may start, stop, and health-check. A missing file yields an empty,
// valid registry rather than an error, since every sidecar is optional.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRegistry(map[string]ServiceMeta{}), nil
		}
		return nil, fmt.Errorf("read services file: %w", err)
	}
	var f servicesFile
	if err = yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse services file %s: %w", path, err)
	}
	return NewRegistry(f.Services), nil
}

// Lookup returns metadata for a service, or false if not whitelisted.
func (r *Registry) Lookup(name string) (ServiceMeta, bool) {
	m, ok := r.services[name]
	return m, ok
}

// Names returns all registered service names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.services))
	for k := range r.services {
		names = append(names, k)
	}
	return names
}
