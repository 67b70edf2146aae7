package formatting

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"berth/internal/api"
)

type jsonFormatter struct{}

func (jsonFormatter) FormatCatalog(w io.Writer, services []api.ServiceInfo) error {
	if services == nil {
		services = []api.ServiceInfo{}
	}
	_, err := fmt.Fprintln(w, PrettyJSON(services))
	return err
}

func (jsonFormatter) FormatTree(w io.Writer, root *api.ServiceGroup) error {
	_, err := fmt.Fprintln(w, PrettyJSON(root))
	return err
}

type yamlFormatter struct{}

// catalogEntry flattens ServiceInfo for YAML, which does not inline
// embedded structs without a tag.
type catalogEntry struct {
	Name   string            `yaml:"name"`
	SID    string            `yaml:"sid"`
	Group  string            `yaml:"group,omitempty"`
	Path   string            `yaml:"path"`
	Status api.ServiceStatus `yaml:"status,omitempty"`
}

func (yamlFormatter) FormatCatalog(w io.Writer, services []api.ServiceInfo) error {
	entries := make([]catalogEntry, 0, len(services))
	for _, svc := range services {
		entries = append(entries, catalogEntry{
			Name:   svc.Name,
			SID:    svc.SID,
			Group:  svc.Group,
			Path:   svc.Path,
			Status: svc.Status,
		})
	}
	return encodeYAML(w, entries)
}

func (yamlFormatter) FormatTree(w io.Writer, root *api.ServiceGroup) error {
	return encodeYAML(w, treeNode(root))
}

// treeNode converts a group into nested maps keyed by group name.
func treeNode(g *api.ServiceGroup) map[string]any {
	children := make([]any, 0, len(g.Children))
	for _, child := range g.Children {
		switch {
		case child.Service != nil:
			children = append(children, child.Service.Name)
		case child.Group != nil:
			children = append(children, treeNode(child.Group))
		}
	}
	return map[string]any{g.Name: children}
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
