// Package daemon wires the queue watcher and workflow manager into a
// single-instance background process.
package daemon
