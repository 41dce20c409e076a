// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package experiment

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/deploy"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/loadgen"
)

// Definition describes one experiment run
type Definition struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`

	// The experiment directory is created under OutputRoot, named by
	// DirTemplate (see report.DirName)
	OutputRoot  string `mapstructure:"output_root"`
	DirTemplate string `mapstructure:"dir_template"`

	// How long to collect before the load starts, and after it ends
	Baseline   time.Duration `mapstructure:"baseline"`
	SettleTime time.Duration `mapstructure:"settle_time"`

	MinInterval time.Duration `mapstructure:"min_interval"`

	CleanNamespaces []string           `mapstructure:"clean_namespaces"`
	Releases        []deploy.Release   `mapstructure:"releases"`
	Setup           []deploy.Exec      `mapstructure:"setup"`
	PingChecks      []deploy.PingCheck `mapstructure:"ping_checks"`
	DeployAttempts  uint               `mapstructure:"deploy_attempts"`
	Sessions        []loadgen.Session  `mapstructure:"sessions"`

	// Pod name prefix of the CPU collection. Empty disables it.
	CPUTarget string `mapstructure:"cpu_target"`

	// Nodes of the host energy collection. Empty disables it.
	HostNodes []string `mapstructure:"host_nodes"`

	// Optional report template file
	ReportTemplate string `mapstructure:"report_template"`
}

var _definitionDefaults = map[string]interface{}{
	"output_root":     ".",
	"dir_template":    "",
	"baseline":        "100s",
	"settle_time":     constants.DefaultSettleTime.String(),
	"min_interval":    constants.DefaultMinInterval.String(),
	"deploy_attempts": 3,
}

// LoadDefinition reads an experiment definition from a YAML or JSON file. The
// format follows the file extension.
func LoadDefinition(path string) (Definition, error) {
	var def Definition

	v := viper.New()
	for key, value := range _definitionDefaults {
		v.SetDefault(key, value)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return def, errors.Wrap(err, "Error while reading the experiment definition")
	}

	if err := v.Unmarshal(&def); err != nil {
		return def, errors.Wrap(err, "Error while decoding the experiment definition")
	}

	if err := def.Validate(); err != nil {
		return def, err
	}
	return def, nil
}

// Validate checks the definition, including every load session
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("The experiment needs a name")
	}
	if d.Baseline < 0 || d.SettleTime < 0 {
		return errors.New("Invalid baseline or settle time. Should be >= 0")
	}
	if d.MinInterval < 0 {
		return errors.New("Invalid min_interval. Should be >= 0")
	}
	if len(d.Releases) > 0 && d.DeployAttempts == 0 {
		return errors.New("Invalid deploy_attempts. Should be >= 1")
	}
	for _, r := range d.Releases {
		if r.Name == "" || r.Chart == "" || r.Namespace == "" {
			return errors.Errorf("Release %q needs a name, a chart and a namespace", r.Name)
		}
	}
	for _, s := range d.Sessions {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// dirParams is the data the directory template is applied to. The load
// parameters come from the first client session.
type dirParams struct {
	Name         string
	Description  string
	Mbps         int
	Duration     int
	PacketLength int
}

func (d Definition) dirData() dirParams {
	params := dirParams{Name: d.Name, Description: d.Description}
	for _, s := range d.Sessions {
		if s.Role == loadgen.RoleClient {
			params.Mbps = s.Mbps
			params.Duration = int(s.Duration.Seconds())
			params.PacketLength = s.PacketLength
			break
		}
	}
	return params
}
