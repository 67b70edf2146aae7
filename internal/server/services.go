package server

import (
	"context"
	"net/http"

	"berth/internal/api"
	"berth/pkg/logging"
)

// Catalog lists and resolves workspace services.
type Catalog interface {
	Statuses() ([]api.ServiceInfo, error)
	GroupTree() (*api.ServiceGroup, error)
	Resolve(sid string) (api.ServiceDescriptor, error)
}

// Controller runs operator start and stop commands.
type Controller interface {
	Start(ctx context.Context, desc api.ServiceDescriptor) error
	Stop(ctx context.Context, desc api.ServiceDescriptor) error
}

// WithServices enables the catalog and command routes.
func (s *Server) WithServices(catalog Catalog, controller Controller) *Server {
	s.catalog = catalog
	s.controller = controller
	return s
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	services, err := s.catalog.Statuses()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if services == nil {
		services = []api.ServiceInfo{}
	}
	writeJSON(w, http.StatusOK, services)
}

func (s *Server) handleTree(w http.ResponseWriter, _ *http.Request) {
	tree, err := s.catalog.GroupTree()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "start", s.controller.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "stop", s.controller.Stop)
}

// command resolves the sid and hands the descriptor to op. Accepted
// commands complete in the background; the outcome arrives on /ws/events.
func (s *Server) command(w http.ResponseWriter, r *http.Request, name string,
	op func(context.Context, api.ServiceDescriptor) error) {
	sid := r.PathValue("sid")

	desc, err := s.catalog.Resolve(sid)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	// The request context ends with the response; the operation must not.
	if err := op(context.WithoutCancel(r.Context()), desc); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	logging.Debug("Server", "Accepted %s of %s", name, desc.Name)
	writeJSON(w, http.StatusAccepted, map[string]string{"sid": desc.SID, "name": desc.Name})
}

func statusFor(err error) int {
	switch {
	case api.IsNotFound(err):
		return http.StatusNotFound
	case api.IsConflict(err):
		return http.StatusConflict
	case api.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
