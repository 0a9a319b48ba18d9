// Package quota enforces the remote API's per-minute call budget.
//
// A Scheduler hands out reservations against the current wall-clock minute.
// Reservations that have not yet turned into calls are counted against every
// window they may land in, so no minute ever records more than the configured
// limit even when a batch straddles a boundary. When the budget is exhausted
// Reserve sleeps until the next minute (plus a small margin for clock skew on
// the server side) and re-reads the window.
package quota
