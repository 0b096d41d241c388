// Package trigger submits `run` commands on a schedule.
//
// A trigger never touches scheduler state: it only drops a command record
// on the command channel, so triggered jobs queue and preempt exactly like
// operator-issued ones. Submission never blocks the cron goroutine; when
// the channel is full the firing is dropped and a (throttled) warning is
// logged.
package trigger
