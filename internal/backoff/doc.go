// Package backoff schedules reconnection attempts with bounded exponential delays.
//
// A Scheduler holds at most one pending timer. The delay doubles (by default)
// after every scheduled attempt, is capped, and returns to the initial value on
// Reset, which the connection manager calls after every successful open.
package backoff
