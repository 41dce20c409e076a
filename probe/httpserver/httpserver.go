// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// This package handles the web server of the always-on service: the gauge
// exposition, the per-pod lookup API, the scraped history and the healthcheck
package httpserver

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/config"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/exporter"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
)

//////////////////// MAIN PRIVATE VARS AND INIT FUNCTION ////////////////////

var _config config.Configuration
var _exporter *exporter.Exporter
var _querier promq.Querier
var _gatherer prometheus.Gatherer

// Initialize initializes this package (sets some vars, etc...)
func Initialize(config config.Configuration, exp *exporter.Exporter, querier promq.Querier, gatherer prometheus.Gatherer) {
	_config = config
	_exporter = exp
	_querier = querier
	_gatherer = gatherer
}

//////////////////// PUBLIC FUNCTIONS ////////////////////

// RunHttpServer serves until ctx is cancelled
func RunHttpServer(ctx context.Context) error {
	logger := logging.Logger()

	addr := net.JoinHostPort(_config.HttpServerHost, strconv.FormatUint(uint64(_config.HttpServerPort), 10))
	server := &http.Server{
		Addr:              addr,
		Handler:           newMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("HTTP server listening on %s", addr)
	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

//////////////////// PRIVATE FUNCTIONS ////////////////////

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(_gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/metrics-by-pod", metricsByPodHandler)
	mux.HandleFunc("/api/history", historyHandler)
	mux.HandleFunc("/healthz", healthzHandler)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger().Error("Error while encoding the response: ", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

//////////////////// PRIVATE REQUEST HANDLERS FUNCTIONS ////////////////////

// Function to handle requests to "/api/metrics-by-pod". It answers with the
// raw backend results of the power query of the first pod whose name contains
// "search_term".
func metricsByPodHandler(w http.ResponseWriter, r *http.Request) {
	logger := logging.Logger()

	searchTerm := r.URL.Query().Get("search_term")
	if searchTerm == "" {
		writeError(w, http.StatusBadRequest, "Search term is required")
		return
	}

	entry, found := _exporter.Resolver().Snapshot().FindByName(searchTerm)
	if !found {
		writeError(w, http.StatusNotFound, "Pod not found")
		return
	}

	vector, err := _exporter.Lookup(r.Context(), entry)
	if err != nil {
		logger.Error("Error while fetching the power of pod ", entry.Name, ": ", err)
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	if vector == nil {
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, vector)
}

// Function to handle requests to "/api/history". Optional "start" and "end"
// are UNIX timestamps; the answer is JSON unless CSV is asked for.
func historyHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	searchTerm := query.Get("search_term")
	if searchTerm == "" {
		writeError(w, http.StatusBadRequest, "Search term is required")
		return
	}

	var start, end *int64
	if s := query.Get("start"); s != "" {
		t, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start timestamp")
			return
		}
		start = &t
	}
	if e := query.Get("end"); e != "" {
		t, err := strconv.ParseInt(e, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end timestamp")
			return
		}
		end = &t
	}
	if start != nil && end != nil && *start > *end {
		writeError(w, http.StatusBadRequest, "Invalid query: start > end")
		return
	}

	entry, found := _exporter.Resolver().Snapshot().FindByName(searchTerm)
	if !found {
		writeError(w, http.StatusNotFound, "Pod not found")
		return
	}
	points := _exporter.State().History(entry.Name, start, end)

	if r.Header.Get("Accept") == "text/csv" {
		w.Header().Set("Content-Type", "text/csv")
		writer := csv.NewWriter(w)
		defer writer.Flush()
		_ = writer.Write([]string{"timestamp", "value"})
		for _, p := range points {
			_ = writer.Write([]string{
				strconv.FormatInt(p.Timestamp, 10),
				strconv.FormatFloat(p.Value, 'f', -1, 64),
			})
		}
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// Function to handle requests to "/healthz" endpoint. It also checks that the
// metrics backend answers.
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	_, err := _querier.Query(ctx, "vector(1)", time.Now())

	status := http.StatusOK
	if err != nil {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)

	io.WriteString(w, "powerprobe running.\n")
	io.WriteString(w, "Components status:\n")
	if err != nil {
		io.WriteString(w, "- Metrics backend not ready.\n")
	} else {
		io.WriteString(w, "- Metrics backend ready.\n")
	}
	io.WriteString(w, "- Identity mapping entries: "+strconv.Itoa(_exporter.Resolver().Snapshot().Len())+"\n")
	io.WriteString(w, "- Entities in the last scrape: "+strconv.Itoa(len(_exporter.State().Latest()))+"\n")
	io.WriteString(w, "- Entities with history: "+strconv.Itoa(len(_exporter.State().Names()))+"\n")
}
