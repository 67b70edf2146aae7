// Package config loads the berth configuration.
//
// Configuration is read from a single directory containing config.yaml.
// The default directory is ~/.config/berth; commands accept --config-path
// to point elsewhere. The configuration directory is also the default
// control-plane home.
//
// # File Format
//
//	home: /srv/berth
//	workspace:
//	  root: /srv/berth/services
//	  excludeDirs: [bin, lib, conf, plugins, plugin]
//	  settingsFile: service.yaml
//	server:
//	  host: localhost
//	  port: 9899
//	workers:
//	  size: 8
//	lifecycle:
//	  startTimeout: 60s
//	  stopTimeout: 30s
//	  stuckThreshold: 3
//	  guardTTL: 5m
//	notify:
//	  sessionBuffer: 64
//	  maxTextLength: 512
//	logging:
//	  level: info
//	  format: text
//
// Fields left out keep their defaults. A missing config.yaml is not an
// error; a malformed or invalid one is reported as *api.ConfigurationError.
package config
