// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package main

import (
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe"
)

func main() {
	probe.Main()
}
