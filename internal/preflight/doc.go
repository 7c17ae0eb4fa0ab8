// Package preflight runs pre-batch environment checks: directory access,
// free disk space, and external binary availability.
package preflight
