package inventory

import (
	"os"
	"slices"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

// Host represents a machine that tools can be provisioned onto.
type Host struct {
	Name    string            `yaml:"name" json:"name"`
	Address string            `yaml:"address" json:"address"`
	Labels  map[string]string `yaml:"labels" json:"labels,omitempty"`
}

// file is the on-disk layout of an inventory file.
type file struct {
	Hosts []Host `yaml:"hosts"`
}

// Static is a read-only set of known hosts.
type Static struct {
	hosts map[string]Host
	order []string
}

// New creates an inventory from the given host names and an optional YAML file.
// Hosts declared in the file take precedence over bare names.
func New(names []string, path string) (*Static, error) {
	s := &Static{hosts: make(map[string]Host)}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s.add(Host{Name: name, Address: name})
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to read inventory file: %v", err)
	}

	hosts, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for _, h := range hosts {
		s.add(h)
	}

	return s, nil
}

// Parse parses the hosts of an inventory YAML document.
func Parse(data []byte) ([]Host, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid inventory file: %v", err)
	}

	for i := range f.Hosts {
		if f.Hosts[i].Name == "" {
			return nil, status.Errorf(codes.InvalidArgument, "inventory host #%d has no name", i+1)
		}
		if f.Hosts[i].Address == "" {
			f.Hosts[i].Address = f.Hosts[i].Name
		}
	}

	return f.Hosts, nil
}

func (s *Static) add(h Host) {
	if _, ok := s.hosts[h.Name]; !ok {
		s.order = append(s.order, h.Name)
	}
	s.hosts[h.Name] = h
}

// Lookup returns the host with the given name.
func (s *Static) Lookup(name string) (Host, bool) {
	h, ok := s.hosts[name]
	return h, ok
}

// List returns every known host, in declaration order.
func (s *Static) List() []Host {
	hosts := make([]Host, 0, len(s.order))
	for _, name := range s.order {
		hosts = append(hosts, s.hosts[name])
	}
	return hosts
}

// Names returns the sorted names of every known host.
func (s *Static) Names() []string {
	names := slices.Clone(s.order)
	slices.Sort(names)
	return names
}
