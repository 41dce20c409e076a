// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package experiment runs a whole experiment: it deploys the workload,
// collects power (and optionally CPU and host power) while synthetic load
// runs, then persists, renders and summarizes the results in one directory.
package experiment

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/deploy"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/energy"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/identity"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/inventory"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/loadgen"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/poller"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/render"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/report"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/samplestore"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/cmdexec"
)

// Orchestrator holds what an experiment run needs from the outside world
type Orchestrator struct {
	Runner  cmdexec.Runner
	Helm    string
	Kubectl string

	// Where the pollers read from
	Source poller.Source

	// Inventory used for the identity mapping. If nil, kubectl is used and
	// the raw pod list is saved in the experiment directory.
	Lister inventory.Lister

	// Optional run archive
	Archive *samplestore.Archive

	PollInterval  time.Duration
	BackoffFactor int

	// Pause between two deployment attempts
	DeployDelay time.Duration

	PingDelay  time.Duration
	ServerLead time.Duration
}

// Collection is the outcome of one poller
type Collection struct {
	Mode   poller.Mode
	State  poller.State
	Stats  poller.Stats
	Buffer *samplestore.Buffer
	Chart  string
	Err    error
}

// Result is what an experiment run produced
type Result struct {
	ID    string
	Dir   string
	Start time.Time
	End   time.Time

	// Nil if nothing was deployed
	Deploy         *deploy.Timing
	DeployAttempts int

	Collections []Collection
	Energy      []energy.Result
	HostEnergy  []energy.Result
	Sessions    []loadgen.Result
	Mapping     *identity.Mapping
}

// bufferFiles names the persisted buffer of each collection mode
var bufferFiles = map[string]string{
	poller.ModeEnergy:     constants.EnergyBufferFile,
	poller.ModeCPU:        constants.CPUBufferFile,
	poller.ModeHostEnergy: constants.HostEnergyBufferFile,
}

//////////////////// PUBLIC METHODS ////////////////////

// Run runs the experiment described by def. Failed load sessions are recorded
// in the result and do not abort the run. The error reports what prevented
// the run from completing: preparing the directory, deploying, collecting or
// writing the report.
func (o *Orchestrator) Run(ctx context.Context, def Definition) (*Result, error) {
	logger := logging.Logger()

	if err := def.Validate(); err != nil {
		return nil, err
	}

	res := &Result{ID: uuid.NewString(), Start: time.Now()}

	// 1. Experiment directory
	dir, err := o.prepareDir(def)
	if err != nil {
		return nil, err
	}
	res.Dir = dir
	logger.Infof("Starting experiment %q (run %s) in %s", def.Name, res.ID, dir)

	finder := &inventory.KubectlLister{Runner: o.Runner, Kubectl: o.Kubectl}
	lister := o.Lister
	if lister == nil {
		lister = &inventory.KubectlLister{
			Runner:   o.Runner,
			Kubectl:  o.Kubectl,
			SavePath: filepath.Join(dir, constants.PodListFile),
		}
	}
	resolver := identity.NewResolver(lister)

	// 2. Deployment
	if len(def.Releases) > 0 {
		controller := &deploy.Controller{
			Runner:    o.Runner,
			Helm:      o.Helm,
			Kubectl:   o.Kubectl,
			Finder:    finder,
			PingDelay: o.PingDelay,
		}
		timing, attempts, err := o.deploy(ctx, controller, def)
		res.DeployAttempts = attempts
		if err != nil {
			return res, err
		}
		res.Deploy = &timing

		if err := deploy.AppendTiming(filepath.Join(def.OutputRoot, constants.DeployTimesFile), timing); err != nil {
			logger.Error("Error while logging the deployment time: ", err)
		}
	}

	// 3. Identity mapping before the collection
	resolver.Refresh(ctx)

	// 4. Pollers
	pollers, err := o.startPollers(ctx, def, dir, res.ID)
	if err != nil {
		return res, err
	}

	// 5. Baseline, then load
	if sleep(ctx, def.Baseline) == nil && len(def.Sessions) > 0 {
		gen := &loadgen.Generator{
			Runner:     o.Runner,
			Kubectl:    o.Kubectl,
			Finder:     finder,
			LogDir:     dir,
			ServerLead: o.ServerLead,
		}
		res.Sessions = gen.RunAll(ctx, def.Sessions)
	}

	// 6. Settle, then stop and join the pollers
	_ = sleep(ctx, def.SettleTime)
	for _, p := range pollers {
		p.Stop()
	}
	for _, p := range pollers {
		buf, err := p.Wait()
		res.Collections = append(res.Collections, Collection{
			Mode:   p.Mode(),
			State:  p.State(),
			Stats:  p.Stats(),
			Buffer: buf,
			Err:    err,
		})
	}

	if err := ctx.Err(); err != nil {
		res.End = time.Now()
		return res, errors.Wrap(err, "Experiment interrupted")
	}

	// 7. Identity mapping after the collection
	if !resolver.Refresh(ctx) {
		logger.Warn("Using the identity mapping taken before the collection")
	}
	res.Mapping = resolver.Snapshot()
	if err := res.Mapping.Save(filepath.Join(dir, constants.MappingFile)); err != nil {
		logger.Error("Error while saving the identity mapping: ", err)
	}

	// 8. Charts, energy, report
	o.summarize(def, res)
	res.End = time.Now()

	writer := report.NewWriter()
	if def.ReportTemplate != "" {
		if err := writer.LoadTemplate(def.ReportTemplate); err != nil {
			return res, err
		}
	}
	if err := writer.Write(filepath.Join(dir, constants.ReportFile), res.Content(def)); err != nil {
		return res, err
	}

	logger.Infof("Experiment %q completed in %v", def.Name, res.End.Sub(res.Start).Round(time.Second))
	return res, nil
}

// Content returns the report data of the result
func (r *Result) Content(def Definition) report.Content {
	content := report.Content{
		Name:        def.Name,
		Description: def.Description,
		ID:          r.ID,
		Dir:         r.Dir,
		Start:       r.Start,
		End:         r.End,
	}

	if r.Deploy != nil {
		content.Deploy = &report.Deploy{
			Start:    r.Deploy.Start,
			End:      r.Deploy.End,
			Seconds:  r.Deploy.Duration().Seconds(),
			Attempts: r.DeployAttempts,
		}
	}

	for _, c := range r.Collections {
		rc := report.Collection{
			Mode:     c.Mode.Name,
			State:    c.State.String(),
			Polls:    c.Stats.Polls,
			Failures: c.Stats.Failures,
			Chart:    c.Chart,
		}
		if c.Buffer != nil {
			rc.Samples = c.Buffer.Total()
			rc.Entities = len(c.Buffer.Entities())
		}
		if c.Err != nil {
			rc.Error = c.Err.Error()
		}
		content.Collections = append(content.Collections, rc)
	}

	for _, e := range r.Energy {
		content.Energy = append(content.Energy, report.Energy{
			Entity:    e.Entity,
			Name:      r.Mapping.Resolve(e.Entity),
			Joules:    e.Joules,
			Estimated: e.Estimated,
		})
	}
	for _, e := range r.HostEnergy {
		content.HostEnergy = append(content.HostEnergy, report.Energy{
			Entity:    e.Entity,
			Name:      e.Entity,
			Joules:    e.Joules,
			Estimated: e.Estimated,
		})
	}

	for _, s := range r.Sessions {
		rs := report.Session{Role: s.Session.Role, Pod: s.PodName}
		if s.LogFile != "" {
			rs.LogFile = filepath.Base(s.LogFile)
		}
		if s.Err != nil {
			rs.Error = s.Err.Error()
		}
		content.Sessions = append(content.Sessions, rs)
	}

	return content
}

//////////////////// PRIVATE METHODS ////////////////////

// prepareDir creates the experiment directory, removing the files a previous
// run left there
func (o *Orchestrator) prepareDir(def Definition) (string, error) {
	logger := logging.Logger()

	name, err := report.DirName(def.DirTemplate, def.dirData())
	if err != nil {
		return "", err
	}
	dir := filepath.Join(def.OutputRoot, name)

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return "", errors.Wrap(err, "Error while reading the experiment directory")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warnf("Failed to delete %s: %v", path, err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "Error while creating the experiment directory")
	}
	return dir, nil
}

// deploy deploys the releases, runs the setup commands and checks
// connectivity, starting over until everything succeeds or the attempts run
// out
func (o *Orchestrator) deploy(ctx context.Context, controller *deploy.Controller, def Definition) (deploy.Timing, int, error) {
	logger := logging.Logger()

	var timing deploy.Timing
	attempts := 0

	err := retry.Do(
		func() error {
			attempts++
			t, err := controller.Deploy(ctx, def.CleanNamespaces, def.Releases)
			if err != nil {
				return err
			}
			for _, exec := range def.Setup {
				if err := controller.Exec(ctx, exec); err != nil {
					return err
				}
			}
			for _, check := range def.PingChecks {
				if err := controller.Ping(ctx, check); err != nil {
					return err
				}
			}
			timing = t
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(def.DeployAttempts),
		retry.Delay(o.DeployDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnf("Deployment attempt %d failed, starting over: %v", n+1, err)
		}),
	)
	if err != nil {
		return timing, attempts, errors.Wrapf(err, "Deployment failed after %d attempts", attempts)
	}

	logger.Infof("Deployment completed in %v (%d attempts)", timing.Duration().Round(time.Millisecond), attempts)
	return timing, attempts, nil
}

// startPollers starts the energy poller, and the CPU and host energy ones
// when configured. They all run until stopped.
func (o *Orchestrator) startPollers(ctx context.Context, def Definition, dir, runID string) ([]*poller.Poller, error) {
	modes := []poller.Mode{poller.EnergyMode()}
	if len(def.HostNodes) > 0 {
		modes = append(modes, poller.HostEnergyMode(def.HostNodes...))
	}
	if def.CPUTarget != "" {
		modes = append(modes, poller.CPUMode(def.CPUTarget))
	}

	var pollers []*poller.Poller
	for _, mode := range modes {
		writers := samplestore.MultiWriter{samplestore.FileWriter{Path: filepath.Join(dir, bufferFiles[mode.Name])}}
		if o.Archive != nil {
			run := samplestore.NewRun(def.Name+"/"+runID, mode.Name)
			writers = append(writers, samplestore.ArchiveWriter{Archive: o.Archive, Run: run})
		}

		p := poller.New(poller.Config{
			Source:        o.Source,
			Mode:          mode,
			Interval:      o.PollInterval,
			BackoffFactor: o.BackoffFactor,
			Writer:        writers,
		})
		if err := p.Start(ctx); err != nil {
			for _, started := range pollers {
				started.Stop()
				_, _ = started.Wait()
			}
			return nil, err
		}
		pollers = append(pollers, p)
	}
	return pollers, nil
}

// summarize renders every collection and computes the energy figures
func (o *Orchestrator) summarize(def Definition, res *Result) {
	logger := logging.Logger()

	for i := range res.Collections {
		c := &res.Collections[i]
		if c.Buffer == nil || c.Buffer.Total() == 0 {
			logger.Warnf("No %s samples collected, skipping the chart", c.Mode.Name)
			continue
		}

		opts := render.DefaultOptions(c.Mode.Name)
		if def.MinInterval > 0 {
			opts.MinInterval = def.MinInterval
		}
		chart := "metrics_" + c.Mode.Name + ".png"
		if err := render.Render(c.Buffer, res.Mapping, filepath.Join(res.Dir, chart), opts); err != nil {
			logger.Error("Error while rendering the ", c.Mode.Name, " chart: ", err)
		} else {
			c.Chart = chart
		}

		switch c.Mode.Name {
		case poller.ModeEnergy:
			res.Energy = energy.OfBuffer(c.Buffer)
		case poller.ModeHostEnergy:
			res.HostEnergy = energy.OfBuffer(c.Buffer)
		}
	}
}

//////////////////// PRIVATE FUNCTIONS ////////////////////

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
