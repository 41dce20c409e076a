// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package identity

import (
	"context"
	"sync/atomic"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/inventory"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
)

// Resolver holds the current mapping and refreshes it from an inventory. It
// is safe for concurrent use: Refresh swaps the whole mapping atomically, so
// lookups see either the old or the new mapping, never a mix.
type Resolver struct {
	lister  inventory.Lister
	current atomic.Pointer[Mapping]
}

// NewResolver returns a resolver with an empty mapping
func NewResolver(lister inventory.Lister) *Resolver {
	r := &Resolver{lister: lister}
	r.current.Store(EmptyMapping())
	return r
}

// Refresh lists the inventory and replaces the mapping. On failure the
// previous mapping is kept and the error is only logged. It returns true if
// the mapping was replaced.
func (r *Resolver) Refresh(ctx context.Context) bool {
	logger := logging.Logger()

	pods, err := r.lister.ListPods(ctx)
	if err != nil {
		logger.Error("Error while refreshing the identity mapping, keeping the previous one: ", err)
		return false
	}

	mapping := FromPods(pods)
	r.current.Store(mapping)

	logger.Debugf("Identity mapping refreshed with %d entries", mapping.Len())
	return true
}

// Replace installs mapping as the current one (e.g. loaded from a file)
func (r *Resolver) Replace(mapping *Mapping) {
	if mapping == nil {
		mapping = EmptyMapping()
	}
	r.current.Store(mapping)
}

// Resolve resolves short against the current mapping
func (r *Resolver) Resolve(short string) string {
	return r.current.Load().Resolve(short)
}

// Snapshot returns the current mapping. Use it for several lookups that must
// agree with each other.
func (r *Resolver) Snapshot() *Mapping {
	return r.current.Load()
}
