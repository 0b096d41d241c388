// Package sched is the scheduler core: the job registry, the running slot
// table, the ready queue, the eviction policy and the control loop that
// serializes every mutation of them.
//
// All state is owned by one goroutine (the Loop). Nothing in this package
// takes a lock; callers that want to drive a Scheduler directly must do so
// from a single goroutine.
package sched
