// Package daemon hosts the long-running fieldpress process.
//
// A Daemon owns the background services that turn inbox photographs into
// published gallery assets: the ingest producers, the workflow manager, and
// the local HTTP API. It holds a file lock in the state directory so only one
// instance runs against a given queue database at a time.
//
// Run is the entrypoint used by the start command. It wires logging, the
// queue store, the processing stages, and signal handling around a Daemon and
// blocks until the process is asked to shut down.
package daemon
