package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/clusterforge/nodeident/bootstrap"
	"github.com/clusterforge/nodeident/common"
	"github.com/clusterforge/nodeident/httpserver"
	"github.com/clusterforge/nodeident/interfaces"
	"github.com/clusterforge/nodeident/keymgr"
	"github.com/clusterforge/nodeident/storage"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "cert-dir",
		Value: "certs",
		Usage: "directory for the cluster keypair and credential cache",
	},
	&cli.StringFlag{
		Name:  "manifest",
		Value: "nodes.yaml",
		Usage: "YAML manifest of nodes to bootstrap",
	},
	&cli.StringFlag{
		Name:  "db-owner",
		Value: "auth_core",
		Usage: "node id that supplies the credential database target",
	},
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for diagnostics API",
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Value: "127.0.0.1:8090",
		Usage: "address to listen on for Prometheus metrics",
	},
	&cli.IntFlag{
		Name:  "bootstrap-timeout",
		Value: 300,
		Usage: "timeout in seconds for the bootstrap fan-out",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: "nodeident-bootstrapd",
		Usage: "add 'service' tag to logs",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:   "bootstrapd",
		Usage:  "Provision cluster node identities and root-scoped credentials",
		Flags:  flags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	certDir := cCtx.String("cert-dir")
	manifestPath := cCtx.String("manifest")
	dbOwner := cCtx.String("db-owner")
	listenAddr := cCtx.String("listen-addr")
	metricsAddr := cCtx.String("metrics-addr")
	bootstrapTimeout := time.Duration(cCtx.Int("bootstrap-timeout")) * time.Second
	drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool("log-debug"),
		JSON:    cCtx.Bool("log-json"),
		Service: cCtx.String("log-service"),
		Version: common.Version,
	})

	if cCtx.Bool("log-uid") {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}

	manifestFile, err := os.Open(manifestPath)
	if err != nil {
		logger.Error("Failed to open node manifest", "err", err)
		return err
	}
	manifest, err := bootstrap.LoadManifest(manifestFile)
	manifestFile.Close()
	if err != nil {
		logger.Error("Failed to load node manifest", "err", err)
		return err
	}
	logger.Info("Node manifest loaded",
		"path", manifestPath,
		"nodes", len(manifest.Nodes))

	keys := keymgr.New(certDir, logger)
	factory := storage.NewFactory(logger)
	coordinator, err := bootstrap.New(bootstrap.Config{
		DatabaseOwnerID: interfaces.NodeID(dbOwner),
		Log:             logger,
	}, keys, factory)
	if err != nil {
		logger.Error("Failed to create coordinator", "err", err)
		return err
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              cCtx.Bool("pprof"),
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	})
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	srv.RunInBackground()

	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()

	// Announce first so a manifest without the database owner fails the
	// fan-out immediately instead of hanging on the target.
	coordinator.AnnounceManifest(manifest.NodeIDs())

	descriptors := manifest.Descriptors()
	errs := make([]error, len(descriptors))
	var wg sync.WaitGroup
	for i, desc := range descriptors {
		wg.Add(1)
		go func(i int, desc interfaces.NodeDescriptor) {
			defer wg.Done()
			if err := coordinator.Verify(ctx, desc.Type, desc.ID, desc.Config); err != nil {
				logger.Error("Node bootstrap failed",
					"node", desc.ID.String(),
					"type", string(desc.Type),
					"err", err)
				errs[i] = err
				return
			}
			logger.Info("Node bootstrapped",
				"node", desc.ID.String(),
				"type", string(desc.Type))
		}(i, desc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			srv.Shutdown()
			return fmt.Errorf("bootstrap failed: %w", err)
		}
	}

	srv.SetReady(true)
	logger.Info("All nodes bootstrapped, serving diagnostics")

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit

	logger.Info("Shutting down")
	srv.Shutdown()
	if err := coordinator.Close(context.Background()); err != nil {
		logger.Error("Failed to close credential backend", "err", err)
	}
	return nil
}
