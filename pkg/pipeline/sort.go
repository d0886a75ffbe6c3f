package pipeline

import "slices"

// SortByPriority reorders references so that those named in priority keep
// the priority order relative to each other. References not in the list
// keep their relative order.
//
// Whenever a reference with a higher priority (lower index) is found after
// one with a lower priority, it is moved directly before that earlier one and
// the scan restarts.
func SortByPriority(refs, priority []string) []string {
	out := slices.Clone(refs)
	if len(priority) == 0 {
		return out
	}

	for {
		moved := false
		lastIndex, lastPriority := -1, -1
		for i, ref := range out {
			name, _ := Parse(ref)
			p := slices.Index(priority, name)
			if p < 0 {
				continue
			}
			if lastPriority >= 0 && p < lastPriority {
				item := out[i]
				out = slices.Delete(out, i, i+1)
				out = slices.Insert(out, lastIndex, item)
				moved = true
				break
			}
			lastIndex, lastPriority = i, p
		}
		if !moved {
			return out
		}
	}
}
