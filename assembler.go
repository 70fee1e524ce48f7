package cmdlog

import "github.com/dkirby/cmdlogd/internal/constants"

// WriteAssembler accumulates write chunks into a single PartialEntry until a
// terminator byte is observed, at which point it hands back a completed
// Command. In the shared-log design there is one WriteAssembler guarded by
// CommandLog's mutex, so "per-producer" collapses to "per-log" - concurrent
// producers interleave at the chunk granularity, never mid-chunk.
type WriteAssembler struct {
	partial []byte
}

// Feed appends chunk to the in-progress partial entry. If the resulting
// bytes end in the terminator, the entry is promoted: Feed returns the
// completed Command with ok=true and resets its internal state to empty.
// Otherwise it retains the bytes and returns ok=false.
//
// Growth is plain slice append (amortized doubling) - any order-preserving
// growth policy satisfies the contract that the eventual Command is a single
// contiguous region sized to the total fed since the last terminator.
func (a *WriteAssembler) Feed(chunk []byte) (completed Command, ok bool) {
	if len(chunk) == 0 {
		return nil, false
	}
	a.partial = append(a.partial, chunk...)
	if a.partial[len(a.partial)-1] == constants.Terminator {
		return a.promote(), true
	}
	return nil, false
}

// Pending reports whether a partial, unterminated entry is currently held.
func (a *WriteAssembler) Pending() bool {
	return len(a.partial) > 0
}

// Reset discards any partial entry, used by CommandLog.Close.
func (a *WriteAssembler) Reset() {
	a.partial = nil
}

func (a *WriteAssembler) promote() Command {
	cmd := Command(a.partial)
	a.partial = nil
	return cmd
}
