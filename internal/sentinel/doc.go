// Package sentinel implements the per-resource polling state machine.
//
// Each Sentinel alternates between probing its resource and waiting out the
// configured interval, so exactly one probe is ever in flight per resource.
// Consecutive outcomes are diffed by a pure lifecycle function
// (transition.go) into one of four transitions — none, new, changed,
// resolved — and every non-none transition renders one alert that is fanned
// out, fire-and-forget, to the resource's notification backends.
//
// Runner drives all sentinels to completion concurrently, isolating each
// resource's fatal errors from its siblings.
package sentinel
