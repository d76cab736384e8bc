// Package config loads the immutable process configuration from the
// environment. The result is constructed once at startup and injected
// into the core; nothing re-reads the environment afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvAllowNamespaces is a comma-separated list of namespaces the
	// service may read or mutate. Empty means unrestricted.
	EnvAllowNamespaces = "KRONIC_ALLOW_NAMESPACES"
	// EnvNamespaceOnly restricts the service to its own namespace,
	// superseding the allow-list.
	EnvNamespaceOnly = "KRONIC_NAMESPACE_ONLY"
	// EnvNamespace is the namespace the service runs in. Required when
	// namespace-only mode is enabled.
	EnvNamespace = "KRONIC_NAMESPACE"
	// EnvRequestTimeout bounds each individual cluster API call.
	EnvRequestTimeout = "KRONIC_REQUEST_TIMEOUT"
)

// DefaultRequestTimeout bounds a single cluster API call when
// KRONIC_REQUEST_TIMEOUT is unset.
const DefaultRequestTimeout = 10 * time.Second

// Config is the immutable configuration injected into the core.
type Config struct {
	// AllowNamespaces is the namespace allow-list. Empty permits all
	// namespaces.
	AllowNamespaces []string
	// NamespaceOnly restricts all access to OwnNamespace, regardless of
	// AllowNamespaces.
	NamespaceOnly bool
	// OwnNamespace is the namespace the process runs in.
	OwnNamespace string
	// RequestTimeout bounds each individual cluster API call.
	RequestTimeout time.Duration
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		AllowNamespaces: splitList(os.Getenv(EnvAllowNamespaces)),
		OwnNamespace:    os.Getenv(EnvNamespace),
		RequestTimeout:  DefaultRequestTimeout,
	}

	if raw := os.Getenv(EnvNamespaceOnly); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s value %q: %w", EnvNamespaceOnly, raw, err)
		}
		cfg.NamespaceOnly = v
	}

	if cfg.NamespaceOnly && cfg.OwnNamespace == "" {
		return Config{}, fmt.Errorf("%s is required when %s is set", EnvNamespace, EnvNamespaceOnly)
	}

	if raw := os.Getenv(EnvRequestTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s value %q: %w", EnvRequestTimeout, raw, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %s", EnvRequestTimeout, d)
		}
		cfg.RequestTimeout = d
	}

	return cfg, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
