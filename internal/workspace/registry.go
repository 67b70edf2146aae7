package workspace

import (
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"berth/internal/api"
	"berth/pkg/logging"
	pkgstrings "berth/pkg/strings"
)

// RootGroupName is the name of the synthetic group holding every service.
const RootGroupName = "localhost"

// DefaultSettingsFile is the per-service settings file name.
const DefaultSettingsFile = "service.yaml"

// DefaultExcludeDirs are workspace entries that never denote a service.
var DefaultExcludeDirs = []string{"bin", "lib", "conf", "plugins", "plugin"}

// StatusReader derives the status of a service.
type StatusReader interface {
	Status(sid string) api.ServiceStatus
}

// Options configures a Registry.
type Options struct {
	// Root is the workspace directory holding one subdirectory per service.
	Root string
	// ExcludeDirs lists directory names that are never services.
	ExcludeDirs []string
	// SettingsFile is the per-service settings file name.
	SettingsFile string
}

// Registry discovers services from the workspace directory. Every call
// rescans the filesystem; nothing is cached between calls.
type Registry struct {
	root         string
	exclude      map[string]struct{}
	settingsFile string
	status       StatusReader

	// names caches sid -> name from every scan. A sid is derived from the
	// directory path, so a cached entry never maps to a different name.
	names sync.Map
}

// NewRegistry creates a registry. A relative root is made absolute.
func NewRegistry(opts Options) *Registry {
	root := opts.Root
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	excludeDirs := opts.ExcludeDirs
	if excludeDirs == nil {
		excludeDirs = DefaultExcludeDirs
	}
	exclude := make(map[string]struct{}, len(excludeDirs))
	for _, name := range excludeDirs {
		exclude[name] = struct{}{}
	}

	settingsFile := opts.SettingsFile
	if settingsFile == "" {
		settingsFile = DefaultSettingsFile
	}

	return &Registry{
		root:         root,
		exclude:      exclude,
		settingsFile: settingsFile,
	}
}

// SetStatusReader installs the status source used by Statuses.
func (r *Registry) SetStatusReader(status StatusReader) {
	r.status = status
}

// Root returns the canonical workspace root, creating it if missing.
func (r *Registry) Root() (string, error) {
	info, err := os.Stat(r.root)
	switch {
	case err == nil && info.IsDir():
		return Canonical(r.root), nil
	case err == nil:
		return "", api.NewConfigurationError(r.root, "workspace root is not a directory", nil)
	case !errors.Is(err, os.ErrNotExist):
		return "", api.NewConfigurationError(r.root, "cannot access workspace root", err)
	}

	if err := os.MkdirAll(r.root, 0755); err != nil {
		return "", api.NewConfigurationError(r.root, "cannot create workspace root", err)
	}
	logging.Info("Workspace", "Created workspace root %s", r.root)
	return Canonical(r.root), nil
}

// Accepts reports whether a directory name can denote a service: it must
// not be hidden, contain whitespace, or be excluded.
func (r *Registry) Accepts(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || pkgstrings.HasWhitespace(name) {
		return false
	}
	_, excluded := r.exclude[name]
	return !excluded
}

// List returns the services in the workspace sorted by name.
func (r *Registry) List() ([]api.ServiceDescriptor, error) {
	root, err := r.Root()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, api.NewConfigurationError(root, "cannot read workspace root", err)
	}

	services := make([]api.ServiceDescriptor, 0, len(entries))
	for _, entry := range entries {
		dir := filepath.Join(root, entry.Name())
		if !r.Accepts(entry.Name()) || !isDir(dir, entry) {
			continue
		}
		services = append(services, r.describe(dir))
	}

	sort.Slice(services, func(i, j int) bool {
		return services[i].Name < services[j].Name
	})
	return services, nil
}

// GroupTree partitions List by group. Ungrouped services come first under
// the root, followed by the groups in first-seen order.
func (r *Registry) GroupTree() (*api.ServiceGroup, error) {
	services, err := r.List()
	if err != nil {
		return nil, err
	}
	return BuildGroupTree(services), nil
}

// BuildGroupTree arranges services under a root group.
func BuildGroupTree(services []api.ServiceDescriptor) *api.ServiceGroup {
	root := &api.ServiceGroup{Name: RootGroupName, Children: []api.GroupEntry{}}

	var groups []*api.ServiceGroup
	byName := make(map[string]*api.ServiceGroup)

	for i := range services {
		svc := &services[i]
		if svc.Group == "" {
			root.Children = append(root.Children, api.GroupEntry{Service: svc})
			continue
		}
		g, ok := byName[svc.Group]
		if !ok {
			g = &api.ServiceGroup{Name: svc.Group}
			byName[svc.Group] = g
			groups = append(groups, g)
		}
		g.Children = append(g.Children, api.GroupEntry{Service: svc})
	}

	for _, g := range groups {
		root.Children = append(root.Children, api.GroupEntry{Group: g})
	}
	return root
}

// Resolve returns the service with the given sid.
func (r *Registry) Resolve(sid string) (api.ServiceDescriptor, error) {
	services, err := r.List()
	if err != nil {
		return api.ServiceDescriptor{}, err
	}
	for _, svc := range services {
		if svc.SID == sid {
			return svc, nil
		}
	}
	return api.ServiceDescriptor{}, api.NewServiceNotFoundError(sid)
}

// ResolveName returns the service whose directory is called name.
func (r *Registry) ResolveName(name string) (api.ServiceDescriptor, error) {
	if !r.Accepts(name) {
		return api.ServiceDescriptor{}, api.NewServiceNotFoundError(name)
	}
	root, err := r.Root()
	if err != nil {
		return api.ServiceDescriptor{}, err
	}

	dir := filepath.Join(root, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return api.ServiceDescriptor{}, api.NewServiceNotFoundError(name)
	}
	return r.describe(dir), nil
}

// NameOf returns the name of the service with the given sid, or "" if it
// is unknown.
// Lifecycle events resolve names through it, so known sids are answered
// from the cache without rescanning.
func (r *Registry) NameOf(sid string) string {
	if name, ok := r.names.Load(sid); ok {
		return name.(string)
	}
	if _, err := r.List(); err != nil {
		return ""
	}
	if name, ok := r.names.Load(sid); ok {
		return name.(string)
	}
	return ""
}

// Statuses returns every service with its derived status.
func (r *Registry) Statuses() ([]api.ServiceInfo, error) {
	services, err := r.List()
	if err != nil {
		return nil, err
	}

	out := make([]api.ServiceInfo, 0, len(services))
	for _, svc := range services {
		status := api.StatusStopped
		if r.status != nil {
			status = r.status.Status(svc.SID)
		}
		out = append(out, api.ServiceInfo{ServiceDescriptor: svc, Status: status})
	}
	return out, nil
}

// isDir reports whether entry is a directory, following a symbolic link.
func isDir(path string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (r *Registry) describe(dir string) api.ServiceDescriptor {
	settings := r.readSettings(dir)
	name, sid := filepath.Base(dir), SID(dir)
	r.names.Store(sid, name)
	return api.ServiceDescriptor{
		Name:     name,
		SID:      sid,
		Group:    strings.TrimSpace(settings.Group),
		Path:     dir,
		Settings: settings,
	}
}

func (r *Registry) readSettings(dir string) api.ServiceSettings {
	var settings api.ServiceSettings

	path := filepath.Join(dir, r.settingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Workspace", "Cannot read %s: %v", path, err)
		}
		return settings
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		logging.Warn("Workspace", "Ignoring malformed settings %s: %v", path, err)
		return api.ServiceSettings{}
	}
	return settings
}

// SID derives the service id of a directory: the lowercase hex of the
// first 16 bytes of the BLAKE3 hash of its canonical absolute path.
func SID(dir string) string {
	sum := blake3.Sum256([]byte(Canonical(dir)))
	return hex.EncodeToString(sum[:16])
}

// Canonical returns the absolute, symlink-free form of path. When links
// cannot be resolved, for example because path no longer exists, the
// absolute path is used.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
