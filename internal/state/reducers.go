package state

// UpdateOp tags how a clearable-append field should be merged by its
// reducer. A node that doesn't touch a clearable-append field simply
// leaves it nil in its returned Delta -- only a present value (carrying
// one of these four ops) causes any merge to happen.
type UpdateOp int

const (
	// OpClear resets the field to an empty list.
	OpClear UpdateOp = iota
	// OpNoop leaves the field exactly as it is.
	OpNoop
	// OpAppend appends Items to the current list.
	OpAppend
	// OpReplace discards the current list and sets it to Items. Used by
	// the Aggregator, which recomputes "merged" from scratch on every
	// run rather than tracking which evidence it already folded in.
	OpReplace
)

// EvidenceUpdate is the tagged delta a worker node returns for one of
// the evidence-list fields (sql_results, vec_results, kg_results,
// merged). Collect-Base clears them; workers append; an empty
// worker result must use OpNoop, never OpClear, per spec invariant I4
// (an empty result from a worker is a no-op, not an erasure of
// whatever another parallel worker already wrote this superstep).
type EvidenceUpdate struct {
	Op    UpdateOp
	Items []Evidence
}

// ClearEvidence returns the delta that resets a list field to empty.
func ClearEvidence() EvidenceUpdate { return EvidenceUpdate{Op: OpClear} }

// NoopEvidence returns the delta that leaves a list field untouched.
func NoopEvidence() EvidenceUpdate { return EvidenceUpdate{Op: OpNoop} }

// AppendEvidence returns the delta that appends items to a list field.
// Passing no items is equivalent to NoopEvidence.
func AppendEvidence(items ...Evidence) EvidenceUpdate {
	if len(items) == 0 {
		return NoopEvidence()
	}
	return EvidenceUpdate{Op: OpAppend, Items: items}
}

// ReplaceEvidence returns the delta that overwrites a list field with
// items wholesale, discarding whatever was there before.
func ReplaceEvidence(items ...Evidence) EvidenceUpdate {
	return EvidenceUpdate{Op: OpReplace, Items: items}
}

// ClearableAppendReducer merges an EvidenceUpdate delta into the
// current []Evidence. It is the Go-typed counterpart of the Python
// reference's clearable_list_reducer_v2: None clears, [] is a no-op,
// a non-empty list appends.
func ClearableAppendReducer(current []Evidence, delta EvidenceUpdate) []Evidence {
	switch delta.Op {
	case OpClear:
		return nil
	case OpAppend:
		if len(delta.Items) == 0 {
			return current
		}
		out := make([]Evidence, 0, len(current)+len(delta.Items))
		out = append(out, current...)
		out = append(out, delta.Items...)
		return out
	case OpReplace:
		out := make([]Evidence, len(delta.Items))
		copy(out, delta.Items)
		return out
	default: // OpNoop
		return current
	}
}

// AdditiveReducer implements the "waiting" barrier counter: each
// delta is added to the running total rather than overwriting it.
func AdditiveReducer(current, delta int) int {
	return current + delta
}

// MergeMessages appends incoming messages to the transcript, skipping
// any whose ID already appears (append-with-dedup-by-id, per spec §3).
func MergeMessages(current []Message, incoming []Message) []Message {
	if len(incoming) == 0 {
		return current
	}
	seen := make(map[string]struct{}, len(current))
	for _, m := range current {
		if m.ID != "" {
			seen[m.ID] = struct{}{}
		}
	}
	out := current
	for _, m := range incoming {
		if m.ID != "" {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
		}
		out = append(out, m)
	}
	return out
}
