// Package cache provides the gateway's two-level idempotent response cache
// backed by Redis.
//
// Every successful upstream fetch is stored under two independent keys:
// an alias record mapping the query fingerprint to the request ID, and a
// payload record mapping the request ID to the fetched insight. Both carry
// the same TTL but are written as separate keys; during the narrow gap
// between the payload and alias writes only the request-ID path is current.
// A crash inside that gap leaves an orphan payload reachable only by ID —
// an accepted consistency gap.
//
// The backend is never a hard dependency: when Redis is unreachable, reads
// degrade to misses and writes fail quietly, leaving the gateway fully
// functional at the cost of extra upstream calls.
package cache
