// Package breaker implements an adaptive, per-name circuit breaker engine.
//
// A Manager owns every named circuit. Each call made through Execute is
// admitted according to the circuit phase, run under the circuit timeout and
// its outcome folded back into the circuit: counters, response-time samples,
// failure patterns and the composite health score.
//
// Besides the classic closed, open and half-open phases a circuit can enter
// partial admission, where calls are let through with an evolving
// probability. A background maintenance loop, started with Manager.Start,
// moves open circuits to half-open once their sleep window has elapsed,
// retunes thresholds from health and time of day, and refreshes failure
// predictions.
//
// All state is process-local and kept in memory.
package breaker
