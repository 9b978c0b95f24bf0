package hold

// diffMemberships compares the record ids that currently match a hold
// against the ids with an active membership, and returns what must change:
// toAdd matches with no active membership, toRemove has an active
// membership but no longer matches. Both inputs may be in any order.
func diffMemberships(matching, active []string) (toAdd, toRemove []string) {
	matchingSet := make(map[string]bool, len(matching))
	for _, id := range matching {
		matchingSet[id] = true
	}
	activeSet := make(map[string]bool, len(active))
	for _, id := range active {
		activeSet[id] = true
	}

	for _, id := range matching {
		if !activeSet[id] {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range active {
		if !matchingSet[id] {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}
