// Package main hosts the fieldpress CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon, inspects daemon and queue
// state, enqueues photographs by hand, scaffolds configuration, and exports
// asset-library reports. Queue commands work against the queue database
// directly, so they behave the same whether or not the daemon is running;
// the status command additionally reads the daemon's HTTP API when one is up.
//
// Keep this package lean: new functionality belongs in the internal packages
// first, surfaced here through dedicated commands or flags.
package main
