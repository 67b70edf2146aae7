package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berth/internal/api"
)

type fakeCatalog struct {
	services []api.ServiceInfo
}

func (c *fakeCatalog) Statuses() ([]api.ServiceInfo, error) {
	return c.services, nil
}

func (c *fakeCatalog) GroupTree() (*api.ServiceGroup, error) {
	root := &api.ServiceGroup{Name: "localhost"}
	for i := range c.services {
		desc := c.services[i].ServiceDescriptor
		root.Children = append(root.Children, api.GroupEntry{Service: &desc})
	}
	return root, nil
}

func (c *fakeCatalog) Resolve(sid string) (api.ServiceDescriptor, error) {
	for _, s := range c.services {
		if s.SID == sid {
			return s.ServiceDescriptor, nil
		}
	}
	return api.ServiceDescriptor{}, api.NewServiceNotFoundError(sid)
}

type fakeController struct {
	mu      sync.Mutex
	started []string
	stopErr error
}

func (c *fakeController) Start(ctx context.Context, desc api.ServiceDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.started = append(c.started, desc.Name)
	return nil
}

func (c *fakeController) Stop(_ context.Context, _ api.ServiceDescriptor) error {
	return c.stopErr
}

func newServicesServer(t *testing.T, ctrl *fakeController) *httptest.Server {
	t.Helper()
	catalog := &fakeCatalog{services: []api.ServiceInfo{
		{ServiceDescriptor: api.ServiceDescriptor{Name: "alpha", SID: "a1"}, Status: api.StatusStopped},
		{ServiceDescriptor: api.ServiceDescriptor{Name: "beta", SID: "b2"}, Status: api.StatusRunning},
	}}
	srv := New(Options{}, nil, nil, &fakeReceiver{}, nil).WithServices(catalog, ctrl)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestListServices(t *testing.T) {
	ts := newServicesServer(t, &fakeController{})

	resp, err := http.Get(ts.URL + "/services")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []api.ServiceInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, api.StatusRunning, got[1].Status)
}

func TestServiceTree(t *testing.T) {
	ts := newServicesServer(t, &fakeController{})

	resp, err := http.Get(ts.URL + "/services/tree")
	require.NoError(t, err)
	defer resp.Body.Close()

	var tree api.ServiceGroup
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tree))
	assert.Equal(t, "localhost", tree.Name)
	assert.Len(t, tree.Children, 2)
}

func TestServiceCommands(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		stopErr    error
		wantStatus int
	}{
		{name: "start accepted", path: "/services/a1/start", wantStatus: http.StatusAccepted},
		{name: "unknown sid", path: "/services/zz/start", wantStatus: http.StatusNotFound},
		{name: "stop conflict", path: "/services/b2/stop",
			stopErr: api.NewConflictError("service", "beta", "beta is already stopping"), wantStatus: http.StatusConflict},
		{name: "stop accepted", path: "/services/b2/stop", wantStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{stopErr: tt.stopErr}
			ts := newServicesServer(t, ctrl)

			resp, err := http.Post(ts.URL+tt.path, "application/json", nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestStartOutlivesRequest(t *testing.T) {
	ctrl := &fakeController{}
	ts := newServicesServer(t, ctrl)

	resp, err := http.Post(ts.URL+"/services/a1/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	assert.Equal(t, []string{"alpha"}, ctrl.started)
}
