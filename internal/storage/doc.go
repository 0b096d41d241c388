// Package storage keeps the audit trail: one entry per job transition or
// dispatched command. Nothing is read back on restart; the trail is for
// operators.
package storage
