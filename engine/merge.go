package engine

import (
	"github.com/sharedcode/strata"
)

// Merge resolves a conflict between the stored record and an incoming one for
// the same identity key. It is pure: same inputs, same winner. Shared by
// direct warm writes, hot to warm promotion and read-repair backfill, so every
// path resolves conflicts identically.
//
// Rules, in order:
//   - An incoming tombstone dominates unconditionally. An existing tombstone
//     dominates only incoming versions at or below its own, so a deleted key
//     can be re-created by a higher-version write. A dominating tombstone
//     carries the max version and timestamp seen, so the deletion outlives
//     any concurrent rewrite of the old payload.
//   - Higher version wins outright.
//   - Equal versions fall back to timestamp, later write wins. An exact tie
//     goes to incoming, which keeps merge deterministic for the caller that
//     just wrote.
//
// The winner's Synced flag is carried as-is: fresh caller writes arrive with
// Synced false, cold-tier backfills with Synced true, and either way that flag
// describes exactly what the cold tier holds. Merges that alter the winning
// record's version or timestamp reset Synced, the cold tier no longer holds
// that content.
func Merge(existing, incoming strata.Record) strata.Record {
	if incoming.IsTombstone() || (existing.IsTombstone() && incoming.Version <= existing.Version) {
		winner := existing
		if incoming.IsTombstone() {
			winner = incoming
		}
		out := winner
		out.Deleted = true
		if existing.Version > out.Version {
			out.Version = existing.Version
		}
		if incoming.Version > out.Version {
			out.Version = incoming.Version
		}
		if existing.Timestamp > out.Timestamp {
			out.Timestamp = existing.Timestamp
		}
		if incoming.Timestamp > out.Timestamp {
			out.Timestamp = incoming.Timestamp
		}
		// Carry a payload if one side still has it; cold tier consumers see
		// what was deleted, not just that something was.
		if len(out.Payload) == 0 {
			if len(incoming.Payload) > 0 {
				out.Payload = incoming.Payload
			} else {
				out.Payload = existing.Payload
			}
		}
		out.CreatedAt = existing.CreatedAt
		if out.CreatedAt == 0 {
			out.CreatedAt = incoming.CreatedAt
		}
		out.UpdatedAt = strata.NowMilli()
		if out.Version != winner.Version || out.Timestamp != winner.Timestamp {
			out.Synced = false
			out.SyncedAt = 0
		}
		return out
	}

	incomingWins := false
	switch {
	case incoming.Version > existing.Version:
		incomingWins = true
	case incoming.Version == existing.Version && incoming.Timestamp >= existing.Timestamp:
		incomingWins = true
	}
	if !incomingWins {
		return existing
	}

	out := incoming
	out.CreatedAt = existing.CreatedAt
	if out.CreatedAt == 0 {
		out.CreatedAt = incoming.CreatedAt
	}
	out.UpdatedAt = strata.NowMilli()
	return out
}
