// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package probe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/cliflags"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/deploy"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/energy"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/experiment"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/identity"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/poller"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/render"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/samplestore"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/cmdexec"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/outcome"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the always-on power exporter and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService()
		},
	}
}

func collectCommand() *cobra.Command {
	var flags cliflags.CollectFlags

	command := &cobra.Command{
		Use:   "collect",
		Short: "Poll the metrics backend and save the samples when done or interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := flags.Parse()
			if err != nil {
				return err
			}
			return collect(vals)
		},
	}
	flags.Register(command.Flags())

	return command
}

func collect(vals *cliflags.CollectValues) error {
	ctx, cancel := signalContext()
	defer cancel()

	querier, err := newQuerier()
	if err != nil {
		return err
	}

	writers := samplestore.MultiWriter{samplestore.FileWriter{Path: vals.Output}}
	archive, err := openArchive()
	if err != nil {
		return err
	}
	if archive != nil {
		defer archive.Close()
		run := samplestore.NewRun(vals.Label, vals.Mode.Name)
		writers = append(writers, samplestore.ArchiveWriter{Archive: archive, Run: run})
		logging.Logger().Infof("Archiving the collection as run %s", run.ID)
	}

	p := poller.New(poller.Config{
		Source:        poller.PromSource{Querier: querier},
		Mode:          vals.Mode,
		Interval:      _config.PollInterval,
		BackoffFactor: _config.BackoffFactor,
		Duration:      vals.Duration,
		Writer:        writers,
	})
	_, err = p.Run(ctx)
	return err
}

func mappingCommand() *cobra.Command {
	var flags cliflags.MappingFlags

	command := &cobra.Command{
		Use:   "mapping",
		Short: "Snapshot the pod inventory and save the identity mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := flags.Parse()
			if err != nil {
				return err
			}

			lister, err := newLister(vals.SavePods)
			if err != nil {
				return err
			}
			pods, err := lister.ListPods(cmd.Context())
			if err != nil {
				return err
			}

			mapping := identity.FromPods(pods)
			if err := mapping.Save(vals.Output); err != nil {
				return err
			}
			logging.Logger().Infof("Saved %d mapping entries to %s", mapping.Len(), vals.Output)
			return nil
		},
	}
	flags.Register(command.Flags())

	return command
}

func renderCommand() *cobra.Command {
	var flags cliflags.RenderFlags

	command := &cobra.Command{
		Use:   "render",
		Short: "Draw a saved sample buffer, or an archived run, as a chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := flags.Parse()
			if err != nil {
				return err
			}
			if vals.Run != "" {
				return renderArchived(cmd.Context(), vals)
			}

			mode := vals.Mode
			if mode == "" {
				mode = poller.ModeEnergy
			}
			opts := render.DefaultOptions(mode)
			opts.MinInterval = vals.MinInterval

			rendered, err := render.RenderFile(vals.Buffer, vals.Mapping, vals.Output, opts)
			if err != nil {
				return err
			}
			if rendered {
				logging.Logger().Infof("Chart saved to %s", vals.Output)
			}
			return nil
		},
	}
	flags.Register(command.Flags())

	return command
}

func renderArchived(ctx context.Context, vals *cliflags.RenderValues) error {
	logger := logging.Logger()

	archive, err := openArchive()
	if err != nil {
		return err
	}
	if archive == nil {
		return errors.New("Rendering an archived run needs PROBE_ARCHIVE_PATH")
	}
	defer archive.Close()

	buf, err := archive.LoadRun(ctx, vals.Run)
	if err != nil {
		return err
	}

	mode := vals.Mode
	if mode == "" {
		runs, err := archive.Runs(ctx)
		if err != nil {
			return err
		}
		for _, run := range runs {
			if run.ID == vals.Run {
				mode = run.Mode
			}
		}
	}

	m := identity.LoadMapping(vals.Mapping)
	if m.Kind == outcome.Failed {
		return m.Err
	}
	mapping := m.OrElse(identity.EmptyMapping())

	opts := render.DefaultOptions(mode)
	opts.MinInterval = vals.MinInterval
	if err := render.Render(buf, mapping, vals.Output, opts); err != nil {
		return err
	}
	logger.Infof("Chart of run %s saved to %s", vals.Run, vals.Output)
	return nil
}

func energyCommand() *cobra.Command {
	var flags cliflags.EnergyFlags

	command := &cobra.Command{
		Use:   "energy",
		Short: "Integrate the host power over a window, or over every deployment of a timing log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := flags.Parse(time.Now())
			if err != nil {
				return err
			}

			querier, err := newQuerier()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if vals.Output != "" {
				f, err := os.Create(vals.Output)
				if err != nil {
					return errors.Wrap(err, "Error while creating the output file")
				}
				defer f.Close()
				out = f
			}

			if vals.DeployTimes != "" {
				timings, err := deploy.ReadTimingsFile(vals.DeployTimes)
				if err != nil {
					return err
				}
				return energy.WriteTimings(out, energy.ForTimings(cmd.Context(), querier, timings, vals.Nodes...))
			}

			results, err := energy.Host(cmd.Context(), querier, vals.Start, vals.End, vals.Nodes...)
			if err != nil {
				return err
			}
			return printEnergy(out, results)
		},
	}
	flags.Register(command.Flags())

	return command
}

func printEnergy(out io.Writer, results []energy.Result) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tENERGY (J)\tPOINTS")
	for _, r := range results {
		note := ""
		if r.Estimated {
			note = " (estimated)"
		}
		fmt.Fprintf(tw, "%s\t%.2f%s\t%d\n", r.Entity, r.Joules, note, r.Points)
	}
	fmt.Fprintf(tw, "TOTAL\t%.2f\t\n", energy.Total(results))
	return tw.Flush()
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run DEFINITION",
		Short: "Run the experiment described by a YAML or JSON definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := experiment.LoadDefinition(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			querier, err := newQuerier()
			if err != nil {
				return err
			}

			orch := &experiment.Orchestrator{
				Runner:        cmdexec.ExecRunner{},
				Helm:          _config.HelmBinary,
				Kubectl:       _config.KubectlBinary,
				Source:        poller.PromSource{Querier: querier},
				PollInterval:  _config.PollInterval,
				BackoffFactor: _config.BackoffFactor,
				DeployDelay:   10 * time.Second,
				ServerLead:    2 * time.Second,
			}

			if _config.InventorySource == "api" {
				if orch.Lister, err = newLister(""); err != nil {
					return err
				}
			}

			if orch.Archive, err = openArchive(); err != nil {
				return err
			}
			if orch.Archive != nil {
				defer orch.Archive.Close()
			}

			res, err := orch.Run(ctx, def)
			if res != nil && res.Dir != "" {
				logging.Logger().Infof("Results in %s", filepath.Clean(res.Dir))
			}
			return err
		},
	}
}

func runsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List the archived collection runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive()
			if err != nil {
				return err
			}
			if archive == nil {
				return errors.New("Listing archived runs needs PROBE_ARCHIVE_PATH")
			}
			defer archive.Close()

			runs, err := archive.Runs(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tMODE\tSTORED AT\tSAMPLES")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
					run.ID, run.Label, run.Mode, run.StoredAt.Format(deploy.TimestampLayout), run.Samples)
			}
			return tw.Flush()
		},
	}
}
