// Package checker provides pluggable probes for monitored resources.
//
// A Checker performs one probe and classifies the result: healthy, a domain
// Failure (drives the alert lifecycle), or an infrastructure fault (fatal to
// the owning sentinel). Checkers also supply the failure-equivalence relation
// used to suppress duplicate alerts across ticks.
//
// Implemented kinds: http (status-code allow/deny list, http.go) and
// prometheus (metric threshold over a text exposition scrape, prometheus.go).
// Factory: New(kind, resource, conf) resolves the kind once at startup.
package checker
