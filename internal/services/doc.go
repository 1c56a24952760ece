// Package services provides shared error taxonomy and context helpers used
// by stage handlers and the external capability clients under services/.
package services
