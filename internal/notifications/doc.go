// Package notifications publishes pipeline events to an ntfy topic. When no
// topic is configured the service degrades to a noop so callers never need
// to branch on notification availability.
package notifications
