package sched

import (
	"errors"

	"github.com/eliasxyz/epos-sched/kernel/utils"
)

// InvariantError marks a violated scheduler invariant. Join raises it
// for a self-join or a second joiner; no other operation checks for one
// (Exit and Sleep do not verify their calling context). Reuses
// the ambient utils error kind under this package's own name so call
// sites read sched.InvariantError, per spec.md §7's "halts the system"
// turned into the Go idiom this corpus reaches for on invariants it
// considers unrecoverable: panic.
type InvariantError = utils.InvariantError

func invariant(op, reason string) { utils.Invariant(op, reason) }

// ErrStackExhausted is returned by Scheduler.Spawn when the arena's
// stack pool has no free slots, spec.md §7's resource-exhaustion kind:
// a returned error, never a panic, since construction failing is the
// caller's decision to make.
var ErrStackExhausted = errors.New("sched: stack pool exhausted")
