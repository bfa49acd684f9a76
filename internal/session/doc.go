// Package session multiplexes runs across conversations.
//
// Each session (one open tab, roughly) gets a long-lived Channel holding at
// most one active run at a time. A run is started with a caller-supplied
// request id; the id is bound to the run's cancellation token and stamped on
// every event the run publishes, so callers can correlate cancellation and
// discard events from superseded requests. The Service owns the channels,
// persists messages and per-iteration records, and republishes run events on
// the process-wide bus.
package session
