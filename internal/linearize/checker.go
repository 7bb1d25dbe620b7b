package linearize

import "fmt"

// Violation describes a specific way the recorded history failed to be
// linearizable (spec.md §4.10 "Violations (3) or (4) are the acceptance
// criteria for non-linearizable").
type Violation struct {
	Reason string
}

func (v *Violation) Error() string { return v.Reason }

// Replay sequentially applies history and returns the counter value
// observed after each entry, in history order.
func Replay(history []HistoryEntry) []int {
	values := make([]int, len(history))
	v := 0
	for i, h := range history {
		v = h.Kind.apply(v)
		values[i] = v
	}
	return values
}

func indexByPosition(history []HistoryEntry) map[uint64]int {
	m := make(map[uint64]int, len(history))
	for i, h := range history {
		m[h.Position] = i
	}
	return m
}

// CheckReplayAgreement verifies spec.md §4.10 properties (2) and (3):
// the number of recorded results equals the total order's length, and
// replaying the total order reproduces every worker's recorded result
// at its own commit position.
func CheckReplayAgreement(history []HistoryEntry, records []Record) *Violation {
	committed := 0
	for _, r := range records {
		if r.Committed {
			committed++
		}
	}
	if committed != len(history) {
		return &Violation{Reason: fmt.Sprintf(
			"result/count mismatch: %d committed records but history has %d entries", committed, len(history))}
	}

	replayed := Replay(history)
	byPos := indexByPosition(history)

	for _, r := range records {
		if !r.Committed {
			continue
		}
		idx, ok := byPos[r.Position]
		if !ok {
			return &Violation{Reason: fmt.Sprintf(
				"record for worker %d references position %d, absent from history", r.Worker, r.Position)}
		}
		if replayed[idx] != r.Result {
			return &Violation{Reason: fmt.Sprintf(
				"record for worker %d claims result %d at position %d, replay produced %d",
				r.Worker, r.Result, r.Position, replayed[idx])}
		}
	}
	return nil
}

// CheckRealTimeOrder verifies spec.md §4.10 property (4): if operation a
// ends (wall-clock-like) before b starts, a must precede b in history.
// Aborted operations never enter history and are skipped.
func CheckRealTimeOrder(history []HistoryEntry, records []Record) *Violation {
	byPos := indexByPosition(history)

	for i, a := range records {
		if !a.Committed {
			continue
		}
		ai, ok := byPos[a.Position]
		if !ok {
			continue
		}
		for j, b := range records {
			if i == j || !b.Committed {
				continue
			}
			bi, ok := byPos[b.Position]
			if !ok {
				continue
			}
			if a.End < b.Start && !(ai < bi) {
				return &Violation{Reason: fmt.Sprintf(
					"real-time order violated: worker %d's op ended before worker %d's started, but history orders them the other way",
					a.Worker, b.Worker)}
			}
		}
	}
	return nil
}
