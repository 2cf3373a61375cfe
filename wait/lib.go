// Copyright (c) 2019-2022 Wibowo Arindrarto <contact@arindrarto.dev>
// SPDX-License-Identifier: BSD-3-Clause

// Package wait is a library for waiting on one-shot events. Its core turns any callback-based
// notification into a single awaitable boolean result, racing the notification against a timeout
// and a context cancellation. On top of that core, the package provides event sources for OS
// signals and for TCP servers becoming ready to accept connections.
package wait
