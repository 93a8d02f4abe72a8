// Package status exposes the monitor's alert stream over HTTP.
//
// Hub keeps WebSocket clients and the latest alert event per resource;
// Handler() serves /healthz, /api/status and /ws. Sentinels feed the hub
// through HubNotifier, an extra per-resource notifier handle bound during
// app construction — the sentinel core stays unaware of the hub.
package status
