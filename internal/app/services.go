package app

import (
	"fmt"
	"net"
	"strconv"

	"berth/internal/agents"
	"berth/internal/config"
	"berth/internal/events"
	"berth/internal/importer"
	"berth/internal/launcher"
	"berth/internal/lifecycle"
	"berth/internal/metrics"
	"berth/internal/notify"
	"berth/internal/server"
	"berth/internal/workers"
	"berth/internal/workspace"
	"berth/pkg/logging"
)

// Services holds the wired control-plane components.
type Services struct {
	Metrics    *metrics.Recorder
	Bus        *events.Bus
	Agents     *agents.Directory
	Tracker    *lifecycle.Tracker
	Registry   *workspace.Registry
	Notifier   *notify.Notifier
	Gateway    *notify.Gateway
	Pool       *workers.Pool
	Launcher   *launcher.CommandLauncher
	Controller *lifecycle.Controller
	Importer   *importer.Workflow
	Watcher    *workspace.Watcher
	Server     *server.Server
}

// InitializeServices builds every component in dependency order. An
// unusable workspace root is fatal and returned as a ConfigurationError.
func InitializeServices(cfg config.BerthConfig) (*Services, error) {
	s := &Services{Metrics: metrics.NewRecorder()}

	s.Registry = workspace.NewRegistry(workspace.Options{
		Root:         cfg.Workspace.Root,
		ExcludeDirs:  cfg.Workspace.ExcludeDirs,
		SettingsFile: cfg.Workspace.SettingsFile,
	})
	root, err := s.Registry.Root()
	if err != nil {
		return nil, err
	}
	logging.Info("Bootstrap", "Workspace root is %s", root)

	s.Bus = events.NewBus()

	s.Agents = agents.NewDirectory(s.Bus)
	s.Agents.SetNameResolver(s.Registry.NameOf)
	s.Metrics.RegisterOnlineAgents(func() float64 {
		return float64(len(s.Agents.Online()))
	})

	s.Tracker = lifecycle.NewTracker(s.Agents)
	s.Registry.SetStatusReader(s.Tracker)

	s.Notifier = notify.NewNotifier(s.Bus)
	s.Gateway = notify.NewGateway(s.Bus, notify.Options{MaxTextLength: cfg.Notify.MaxTextLength}, s.Metrics)

	s.Pool = workers.NewPool(cfg.Workers.Size, s.Metrics)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	s.Launcher = launcher.New(launcher.Options{
		StopTimeout: cfg.Lifecycle.StopTimeout,
		LogDir:      cfg.LogDir(),
		AgentURL:    fmt.Sprintf("ws://%s/ws/agent", addr),
	})

	s.Controller = lifecycle.NewController(s.Tracker, s.Launcher, s.Bus, s.Pool, s.Notifier, s.Metrics, lifecycle.Options{
		StartTimeout:   cfg.Lifecycle.StartTimeout,
		StopTimeout:    cfg.Lifecycle.StopTimeout,
		StuckThreshold: cfg.Lifecycle.StuckThreshold,
		GuardTTL:       cfg.Lifecycle.GuardTTL,
	})
	s.Controller.SetNameResolver(s.Registry.NameOf)

	s.Importer = importer.NewWorkflow(cfg.TempDir(), s.Registry, s.Agents, s.Pool, s.Notifier, s.Metrics)
	if err := s.Importer.PurgeStale(); err != nil {
		logging.Warn("Bootstrap", "Could not purge stale imports: %v", err)
	}

	s.Watcher = workspace.NewWatcher(s.Registry, s.Bus, workspace.DefaultDebounce)
	s.Importer.SetChangeFilter(s.Watcher)

	s.Server = server.New(server.Options{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		SessionBuffer: cfg.Notify.SessionBuffer,
		MaxBundleSize: cfg.Server.MaxBundleSize,
	}, s.Agents, s.Gateway, s.Importer, s.Metrics).WithServices(s.Registry, s.Controller)

	return s, nil
}
