// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package probe

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/config"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/exporter"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/httpserver"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/identity"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/inventory"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/samplestore"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/cmdexec"
)

//////////////////// PRIVATE VARIABLES ////////////////////

var _config config.Configuration
var _configPath string

//////////////////// PRIVATE FUNCTIONS ////////////////////

// newQuerier returns a client for the configured metrics backend
func newQuerier() (*promq.Client, error) {
	return promq.NewClient(_config.PrometheusURL, _config.QueryTimeout)
}

// newLister returns the configured pod inventory. savePath only applies to the
// kubectl inventory.
func newLister(savePath string) (inventory.Lister, error) {
	if _config.InventorySource == "api" {
		return inventory.NewClientsetLister(_config.Kubeconfig, "")
	}
	return &inventory.KubectlLister{
		Runner:   cmdexec.ExecRunner{},
		Kubectl:  _config.KubectlBinary,
		SavePath: savePath,
	}, nil
}

// openArchive opens the run archive, or returns nil if none is configured
func openArchive() (*samplestore.Archive, error) {
	if _config.ArchivePath == "" {
		return nil, nil
	}
	return samplestore.OpenArchive(_config.ArchivePath)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	logger := logging.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	chanStop := make(chan os.Signal, 1)
	signal.Notify(chanStop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-chanStop:
			logger.Warn("Caught " + sig.String() + " signal. Stopping.")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(chanStop)
	}()

	return ctx, cancel
}

// runService is the always-on service: it keeps the identity mapping fresh,
// scrapes the power of every named entity and serves the results over HTTP
func runService() error {
	// Obtain the global logger object
	logger := logging.Logger()

	ctx, cancelCtx := signalContext()
	defer cancelCtx()

	////////// METRICS BACKEND AND INVENTORY //////////

	querier, err := newQuerier()
	if err != nil {
		return err
	}

	lister, err := newLister("")
	if err != nil {
		return errors.Wrap(err, "Error while creating the pod inventory")
	}

	resolver := identity.NewResolver(lister)
	if !resolver.Refresh(ctx) {
		logger.Warn("Starting with an empty identity mapping")
	}

	////////// EXPORTER //////////

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exp := exporter.New(resolver, querier, exporter.NewState(_config.HistoryRetention), reg)
	manager := exp.Start(ctx, _config.RefreshPeriod, _config.ScrapePeriod, reg)

	////////// HTTPSERVER INITIALIZATION //////////

	httpserver.Initialize(_config, exp, querier, reg)

	////////// GOROUTINES //////////

	chanErr := make(chan error, 1)
	go func() { chanErr <- httpserver.RunHttpServer(ctx) }()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-chanErr:
		cancelCtx()
	}

	if manager.StopAll(10 * time.Second) {
		logger.Warn("Background tasks did not stop in time")
	}
	return err
}

// newRootCommand builds the command tree
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "powerprobe",
		Short:         "Per-pod power collection and experiment automation for Kubernetes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration.
			var err error
			_config, err = config.LoadConfig(_configPath)
			if err != nil {
				return err
			}

			// Setup logging engine.
			logger, err := logging.Initialize(logging.Options{
				DateTime: _config.DateTime,
				Debug:    _config.DebugMode,
				Colors:   _config.LogColors,
			})
			if err != nil {
				return err
			}

			logger.Debugf("Running %s with configuration: %+v", cmd.Name(), _config)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&_configPath, "config", ".env", "Configuration file (.env format). Environment variables take precedence")

	root.AddCommand(
		serveCommand(),
		collectCommand(),
		mappingCommand(),
		renderCommand(),
		energyCommand(),
		runCommand(),
		runsCommand(),
	)

	return root
}

//////////////////// MAIN FUNCTION ////////////////////

func Main() {
	err := newRootCommand().Execute()
	logging.Sync()
	if err != nil {
		log.Fatal(err)
	}
}
