// Package notify provides pluggable alert-delivery backends.
//
// A Notifier accepts rendered alert messages and delivers them out-of-band,
// best-effort: delivery failures are logged, never retried and never surfaced
// to the sentinel that triggered them. Backends outlive the sentinels holding
// handles to them; backends with delivery machinery expose a consume-once
// Shutdown method discovered by interface assertion.
//
// Implemented kinds: smtp (dedicated serial delivery worker, smtp.go),
// webhook (slack/teams/generic JSON POST, webhook.go) and nats (subject
// publish, nats.go). Factory: New(kind, name, conf).
package notify
