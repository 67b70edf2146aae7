package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"berth/internal/api"
	"berth/internal/metrics"
	"berth/internal/workers"
	"berth/internal/workspace"
	"berth/pkg/logging"
)

// Catalog is the workspace the workflow installs into.
type Catalog interface {
	Root() (string, error)
	Accepts(name string) bool
}

// LivenessReader reports whether a service's agent is online.
type LivenessReader interface {
	IsOnline(sid string) bool
}

// Submitter runs the pipeline off the caller's goroutine.
type Submitter interface {
	Submit(name string, fn workers.TaskFunc) error
}

// Notifier reports pipeline progress and outcomes to clients.
type Notifier interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Progress(operationID, text string)
	ClearProgress(operationID string)
	CatalogChanged(reason string)
}

// ChangeFilter is told which service directory the workflow is about to
// install, so a directory watcher does not announce it a second time.
type ChangeFilter interface {
	Ignore(name string)
}

// Workflow imports packaged services into the workspace.
//
// Each upload gets a temp workspace named after the bundle under TempDir.
// Creating it is the only single-flight control: a second upload of the
// same bundle while the first is still being processed is refused. The
// pipeline runs on the worker pool and removes the temp workspace on every
// exit path.
type Workflow struct {
	tempDir  string
	catalog  Catalog
	liveness LivenessReader
	pool     Submitter
	notifier Notifier
	metrics  *metrics.Recorder
	filter   ChangeFilter
}

// NewWorkflow creates a workflow staging uploads under tempDir.
func NewWorkflow(tempDir string, catalog Catalog, liveness LivenessReader, pool Submitter, notifier Notifier, recorder *metrics.Recorder) *Workflow {
	return &Workflow{
		tempDir:  tempDir,
		catalog:  catalog,
		liveness: liveness,
		pool:     pool,
		notifier: notifier,
		metrics:  recorder,
	}
}

// SetChangeFilter installs the filter told about installed directories.
func (w *Workflow) SetChangeFilter(filter ChangeFilter) {
	w.filter = filter
}

// OperationID derives the operation id of a bundle: its base name without
// a .zip suffix.
func OperationID(bundleName string) string {
	name := filepath.Base(filepath.Clean("/" + bundleName))
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		name = name[:len(name)-len(".zip")]
	}
	return name
}

// Receive stages the bundle read from r and schedules its import. It
// returns the operation id, or a ConflictError if the same bundle is
// already being processed.
func (w *Workflow) Receive(bundleName string, r io.Reader) (string, error) {
	id := OperationID(bundleName)
	if id == "" || id == "." || id == "/" || strings.HasPrefix(id, ".") {
		w.metrics.RecordImport(metrics.ResultRejected, 0)
		return "", api.NewValidationError("bundle", bundleName, "invalid bundle name")
	}

	if err := os.MkdirAll(w.tempDir, 0755); err != nil {
		return "", api.NewConfigurationError(w.tempDir, "cannot create temp directory", err)
	}

	dir := filepath.Join(w.tempDir, id)
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			w.metrics.RecordImport(metrics.ResultRejected, 0)
			return "", api.NewConflictError("bundle", id, fmt.Sprintf("bundle %s is already being processed", id))
		}
		return "", fmt.Errorf("create temp workspace for %s: %w", id, err)
	}

	bundle := filepath.Join(dir, id+".zip")
	if err := writeBundle(bundle, r); err != nil {
		w.removeTemp(dir)
		return "", fmt.Errorf("stage bundle %s: %w", id, err)
	}

	err := w.pool.Submit("import "+id, func(context.Context) {
		w.run(id, dir, bundle)
	})
	if err != nil {
		w.removeTemp(dir)
		return "", fmt.Errorf("schedule import of %s: %w", id, err)
	}

	logging.Info("Import", "Received bundle %s", id)
	w.metrics.RecordImport(metrics.ResultAccepted, 0)
	return id, nil
}

// PurgeStale removes temp workspaces left behind by a previous process.
func (w *Workflow) PurgeStale() error {
	entries, err := os.ReadDir(w.tempDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read temp directory: %w", err)
	}

	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(w.tempDir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(entries) > 0 {
		logging.Info("Import", "Purged %d stale temp workspaces", len(entries)-len(errs))
	}
	return errors.Join(errs...)
}

// run is the pipeline boundary: every failure becomes a notice, and the
// temp workspace and progress slot are released on every path.
func (w *Workflow) run(id, dir, bundle string) {
	started := time.Now()
	defer func() {
		w.removeTemp(dir)
		w.notifier.ClearProgress(id)
	}()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Import", fmt.Errorf("panic: %v", r), "Import of %s panicked", id)
			w.notifier.Error("Import of %s failed: %v", id, r)
			w.metrics.RecordImport(metrics.ResultFailure, time.Since(started).Seconds())
		}
	}()

	err := w.install(id, dir, bundle)
	elapsed := time.Since(started).Seconds()

	switch {
	case err == nil:
		w.metrics.RecordImport(metrics.ResultSuccess, elapsed)
	case api.IsValidation(err), api.IsConflict(err):
		logging.Warn("Import", "Import of %s refused: %v", id, err)
		w.notifier.Warn("Import of %s refused: %v", id, err)
		w.metrics.RecordImport(metrics.ResultRejected, elapsed)
	default:
		logging.Error("Import", err, "Import of %s failed", id)
		w.notifier.Error("Import of %s failed: %v", id, err)
		w.metrics.RecordImport(metrics.ResultFailure, elapsed)
	}
}

func (w *Workflow) install(id, dir, bundle string) error {
	w.notifier.Progress(id, "Upload complete, extracting...")

	out := filepath.Join(dir, "out")
	if err := os.Mkdir(out, 0755); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}
	if err := extract(id, bundle, out); err != nil {
		return err
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		return fmt.Errorf("read extracted bundle: %w", err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return api.NewValidationError("bundle", id,
			fmt.Sprintf("must contain exactly one top-level directory, found %d entries", len(entries)))
	}

	name := entries[0].Name()
	if !w.catalog.Accepts(name) {
		return api.NewValidationError("bundle", id, fmt.Sprintf("%q is not a valid service directory name", name))
	}

	root, err := w.catalog.Root()
	if err != nil {
		return err
	}
	dest := filepath.Join(root, name)

	_, statErr := os.Lstat(dest)
	existed := statErr == nil
	if existed && w.liveness.IsOnline(workspace.SID(dest)) {
		return api.NewConflictError("service", name, fmt.Sprintf("%s is running, stop the service first", name))
	}
	if w.filter != nil {
		w.filter.Ignore(name)
	}
	if existed {
		w.notifier.Progress(id, fmt.Sprintf("%s exists, removing the old directory...", name))
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("remove existing %s: %w", name, err)
		}
	}

	w.notifier.Progress(id, fmt.Sprintf("%s extracted, installing...", name))
	if err := move(filepath.Join(out, name), dest); err != nil {
		return err
	}
	w.notifier.Progress(id, fmt.Sprintf("%s installed", name))

	if existed {
		logging.Info("Import", "Updated service %s from bundle %s", name, id)
		w.notifier.Info("%s updated", name)
	} else {
		logging.Info("Import", "Imported new service %s from bundle %s", name, id)
		w.notifier.CatalogChanged("new service " + name)
		w.notifier.Info("Imported new service %s", name)
	}
	return nil
}

func (w *Workflow) removeTemp(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logging.Warn("Import", "Cannot remove temp workspace %s: %v", dir, err)
	}
}

func writeBundle(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
