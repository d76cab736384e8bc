// The kronic binary bootstraps the CronJob orchestration core: it loads
// configuration from the environment, resolves cluster credentials
// (in-cluster identity first, kubeconfig as fallback), constructs the
// service, and serves health and metrics endpoints. The HTTP API tier
// mounts the service separately.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/kronic-dev/kronic/internal/config"
	"github.com/kronic-dev/kronic/internal/engine"
	"github.com/kronic-dev/kronic/internal/hierarchy"
	"github.com/kronic-dev/kronic/internal/policy"
	"github.com/kronic-dev/kronic/internal/resource"
	"github.com/kronic-dev/kronic/internal/service"
)

var setupLog = ctrl.Log.WithName("setup")

func run() error {
	var healthAddr string
	flag.StringVar(&healthAddr, "health-bind-address", ":8081", "The address the health and metrics endpoints bind to.")

	opts := zap.Options{
		Development: false,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	log := ctrl.Log.WithName("kronic")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// In-cluster config when running in a Pod, kubeconfig otherwise.
	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return fmt.Errorf("resolving cluster credentials: %w", err)
	}

	c, err := client.New(restConfig, client.Options{Scheme: clientgoscheme.Scheme})
	if err != nil {
		return fmt.Errorf("constructing cluster client: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("constructing clientset: %w", err)
	}

	resources := resource.NewClient(c, log, resource.Options{
		Timeout: cfg.RequestTimeout,
		PodLogs: resource.NewPodLogReader(clientset),
	})
	access := policy.NewNamespaceAccess(cfg.AllowNamespaces, cfg.NamespaceOnly, cfg.OwnNamespace, log)
	builder := hierarchy.NewBuilder(resources, log)
	eng := engine.New(resources, log)

	// The service handle is what the API tier mounts; constructing it
	// here verifies the full wiring before we report healthy.
	_ = service.New(access, resources, builder, eng, log)

	setupLog.Info("core initialized",
		"allowNamespaces", cfg.AllowNamespaces,
		"namespaceOnly", cfg.NamespaceOnly,
		"requestTimeout", cfg.RequestTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              healthAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	setupLog.Info("serving health and metrics", "addr", healthAddr)
	return server.ListenAndServe()
}

func main() {
	if err := run(); err != nil {
		setupLog.Error(err, "startup failed")
		os.Exit(1)
	}
}
