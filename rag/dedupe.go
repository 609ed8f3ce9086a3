package rag

// Dedupe drops items whose unwrapped, normalized content repeats an earlier
// item. Kept items stay in their original order.
func Dedupe(items []ContextItem) (removed int, kept []ContextItem) {
	seen := make(map[string]struct{}, len(items))
	kept = make([]ContextItem, 0, len(items))
	for _, item := range items {
		key := Normalize(UnwrapRecordContent(item.Content))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, item)
	}
	return len(items) - len(kept), kept
}
