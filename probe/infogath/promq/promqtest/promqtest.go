// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package promqtest provides stand-ins for the metrics backend in tests.
package promqtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/prometheus/common/model"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq"
)

// Fake is an in-memory promq.Querier. Nil functions return empty results.
type Fake struct {
	QueryFunc      func(query string, ts time.Time) (model.Vector, error)
	QueryRangeFunc func(query string, start, end time.Time, step time.Duration) (model.Matrix, error)

	mu      sync.Mutex
	queries []string
}

var _ promq.Querier = (*Fake)(nil)

// Query implements promq.Querier
func (f *Fake) Query(ctx context.Context, query string, ts time.Time) (model.Vector, error) {
	f.record(query)
	if f.QueryFunc == nil {
		return model.Vector{}, nil
	}
	return f.QueryFunc(query, ts)
}

// QueryRange implements promq.Querier
func (f *Fake) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (model.Matrix, error) {
	f.record(query)
	if f.QueryRangeFunc == nil {
		return model.Matrix{}, nil
	}
	return f.QueryRangeFunc(query, start, end, step)
}

func (f *Fake) record(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
}

// Queries returns every query received so far
func (f *Fake) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// Sample builds a vector element with the given labels
func Sample(value float64, ts time.Time, labels ...string) *model.Sample {
	return &model.Sample{
		Metric:    Metric(labels...),
		Value:     model.SampleValue(value),
		Timestamp: model.TimeFromUnixNano(ts.UnixNano()),
	}
}

// Metric builds a label set from alternating names and values
func Metric(labels ...string) model.Metric {
	metric := model.Metric{}
	for i := 0; i+1 < len(labels); i += 2 {
		metric[model.LabelName(labels[i])] = model.LabelValue(labels[i+1])
	}
	return metric
}

// Handler answers one backend request. It receives the path
// ("/api/v1/query" or "/api/v1/query_range") and the request form.
type Handler func(path string, r *http.Request) (status int, body string)

// NewServer starts an HTTP server speaking the backend's API shape. The caller
// must Close it.
func NewServer(handler Handler) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status, body := handler(r.URL.Path, r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

// VectorBody returns a successful instant query response body
func VectorBody(vector model.Vector) string {
	return successBody("vector", vector)
}

// MatrixBody returns a successful range query response body
func MatrixBody(matrix model.Matrix) string {
	return successBody("matrix", matrix)
}

// ErrorBody returns an error response body
func ErrorBody(errorType, message string) string {
	body, _ := json.Marshal(map[string]string{
		"status":    "error",
		"errorType": errorType,
		"error":     message,
	})
	return string(body)
}

func successBody(resultType string, result interface{}) string {
	body, _ := json.Marshal(map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"resultType": resultType,
			"result":     result,
		},
	})
	return string(body)
}
