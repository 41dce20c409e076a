// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package config

import (
	"os"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
)

// Configuration holds the post-processed configuration values.
type Configuration struct {
	DebugMode bool `mapstructure:"PROBE_DEBUG"`
	DateTime  bool `mapstructure:"PROBE_LOG_DATETIME"`
	LogColors bool `mapstructure:"PROBE_LOG_COLORS"`

	// Base URL of the metrics backend (Prometheus HTTP API).
	PrometheusURL string `mapstructure:"PROBE_PROMETHEUS_URL"`

	// Upper bound for a single query against the metrics backend.
	QueryTimeout time.Duration `mapstructure:"PROBE_QUERY_TIMEOUT"`

	PollInterval  time.Duration `mapstructure:"PROBE_POLL_INTERVAL"`
	BackoffFactor int           `mapstructure:"PROBE_BACKOFF_FACTOR"`

	// Where the pod inventory comes from: "kubectl" runs the kubectl binary,
	// "api" talks to the API server with client-go.
	InventorySource string `mapstructure:"PROBE_INVENTORY_SOURCE"`

	// Kubeconfig used by client-go. If empty, the in-cluster configuration is
	// used.
	Kubeconfig string `mapstructure:"PROBE_KUBECONFIG"`

	KubectlBinary string `mapstructure:"PROBE_KUBECTL"`
	HelmBinary    string `mapstructure:"PROBE_HELM"`

	HttpServerHost string `mapstructure:"PROBE_HTTP_HOST"`
	HttpServerPort uint   `mapstructure:"PROBE_HTTP_PORT"`

	ScrapePeriod  time.Duration `mapstructure:"PROBE_SCRAPE_PERIOD"`
	RefreshPeriod time.Duration `mapstructure:"PROBE_REFRESH_PERIOD"`

	// How far back the always-on service keeps scraped values for /api/history.
	HistoryRetention time.Duration `mapstructure:"PROBE_HISTORY_RETENTION"`

	// SQLite file where finished collection runs are archived. Empty disables
	// the archive.
	ArchivePath string `mapstructure:"PROBE_ARCHIVE_PATH"`

	MinInterval time.Duration `mapstructure:"PROBE_MIN_INTERVAL"`
}

var _defaults = map[string]interface{}{
	"PROBE_DEBUG":             false,
	"PROBE_LOG_DATETIME":      true,
	"PROBE_LOG_COLORS":        false,
	"PROBE_PROMETHEUS_URL":    constants.DefaultPrometheusURL,
	"PROBE_QUERY_TIMEOUT":     "10s",
	"PROBE_POLL_INTERVAL":     constants.DefaultPollInterval.String(),
	"PROBE_BACKOFF_FACTOR":    constants.DefaultBackoffFactor,
	"PROBE_INVENTORY_SOURCE":  "kubectl",
	"PROBE_KUBECONFIG":        "",
	"PROBE_KUBECTL":           "kubectl",
	"PROBE_HELM":              "helm",
	"PROBE_HTTP_HOST":         "0.0.0.0",
	"PROBE_HTTP_PORT":         5000,
	"PROBE_SCRAPE_PERIOD":     "5s",
	"PROBE_REFRESH_PERIOD":    "5s",
	"PROBE_HISTORY_RETENTION": "1h",
	"PROBE_ARCHIVE_PATH":      "",
	"PROBE_MIN_INTERVAL":      constants.DefaultMinInterval.String(),
}

// viperBindConfig binds each field of the Configuration struct with its
// corresponding environment variable.
//
// This is necessary because of a bug in the Viper library. See viper's bug
// [188] for more information.
//
// [188]: https://github.com/spf13/viper/issues/188#issuecomment-1273983955
func viperBindConfig(v *viper.Viper) {
	var cfg Configuration

	t := reflect.TypeOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue // Skip field without mapstructure tag.
		}
		// Bind the environment variable.
		_ = v.BindEnv(tag, tag)
	}
}

// LoadConfig reads configuration from environment variables and from the
// optional .env file at configPath (the --config flag). Environment variables
// take precedence over the file, the file over the built-in defaults. A
// missing file is ignored.
func LoadConfig(configPath string) (config Configuration, err error) {
	v := viper.New()
	for key, value := range _defaults {
		v.SetDefault(key, value)
	}
	viperBindConfig(v)

	v.AllowEmptyEnv(true)

	// If a config file is given and exists, load it.
	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("env")

			if readErr := v.ReadInConfig(); readErr != nil {
				err = errors.Wrap(readErr, "Error while reading the configuration file")
				return
			}
		} else if !os.IsNotExist(statErr) {
			// If error is not "file does not exist", return statErr
			err = statErr
			return
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		err = errors.Wrap(err, "Error while decoding the configuration")
		return
	}

	err = config.validate()
	return
}

func (c Configuration) validate() error {
	if c.PollInterval <= 0 {
		return errors.New("Invalid PROBE_POLL_INTERVAL value. Should be > 0")
	}
	if c.BackoffFactor < 1 {
		return errors.New("Invalid PROBE_BACKOFF_FACTOR value. Should be >= 1")
	}
	if c.ScrapePeriod <= 0 || c.RefreshPeriod <= 0 {
		return errors.New("Invalid PROBE_SCRAPE_PERIOD or PROBE_REFRESH_PERIOD value. Should be > 0")
	}
	if c.InventorySource != "kubectl" && c.InventorySource != "api" {
		return errors.Errorf("Invalid PROBE_INVENTORY_SOURCE %q. Should be \"kubectl\" or \"api\"", c.InventorySource)
	}
	return nil
}
