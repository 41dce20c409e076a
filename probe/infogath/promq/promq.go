// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// This package is for communicating with the metrics backend (Prometheus). The
// name of the package stands for: PROMetheus Querent.
package promq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
)

// Querier is the subset of the backend API used by powerprobe.
type Querier interface {
	// Query runs an instant query evaluated at ts.
	Query(ctx context.Context, query string, ts time.Time) (model.Vector, error)

	// QueryRange runs a range query over [start, end] with the given step.
	QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (model.Matrix, error)
}

// Client talks to the Prometheus HTTP API.
type Client struct {
	api     promv1.API
	timeout time.Duration
}

var _ Querier = (*Client)(nil)

// NewClient returns a Client for the backend at address (e.g.
// "http://prometheus:9090"). A positive timeout bounds every query.
func NewClient(address string, timeout time.Duration) (*Client, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("creating Prometheus API client: %w", err)
	}

	return &Client{
		api:     promv1.NewAPI(client),
		timeout: timeout,
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// Query implements Querier. A result that is not an instant vector is an
// error.
func (c *Client) Query(ctx context.Context, query string, ts time.Time) (model.Vector, error) {
	logger := logging.Logger()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query = squash(query)
	logger.Debug("Prometheus instant query: ", query)

	value, warnings, err := c.api.Query(ctx, query, ts)
	if err != nil {
		return nil, fmt.Errorf("performing instant query: %w", err)
	}
	logWarnings(warnings)

	vector, ok := value.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %q for instant query", value.Type())
	}
	return vector, nil
}

// QueryRange implements Querier. A result that is not a matrix is an error.
func (c *Client) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (model.Matrix, error) {
	logger := logging.Logger()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query = squash(query)
	logger.Debugf("Prometheus range query: %s [%s, %s] step %v", query,
		start.Format(time.RFC3339), end.Format(time.RFC3339), step)

	value, warnings, err := c.api.QueryRange(ctx, query, promv1.Range{Start: start, End: end, Step: step})
	if err != nil {
		return nil, fmt.Errorf("performing range query: %w", err)
	}
	logWarnings(warnings)

	matrix, ok := value.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %q for range query", value.Type())
	}
	return matrix, nil
}

func logWarnings(warnings promv1.Warnings) {
	for _, w := range warnings {
		logging.Logger().Warn("Prometheus warning: ", w)
	}
}

// squash replaces every run of whitespace with a single space, so that queries
// can be written on multiple lines
func squash(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
