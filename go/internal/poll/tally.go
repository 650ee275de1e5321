package poll

// Tally functions are pure: they read a poll and, for AllVoted, the
// current roster, and keep no state of their own.

// LiveCounts returns the per-option vote counts. A stored index
// outside the option range is skipped; vote acceptance should make
// that impossible.
func LiveCounts(p *Poll) []int {
	counts := make([]int, len(p.Options))
	for _, idx := range p.votes {
		if idx >= 0 && idx < len(counts) {
			counts[idx]++
		}
	}
	return counts
}

// AllVoted reports whether every name on the current roster has a
// vote recorded. An empty roster never counts as complete. The
// denominator is the currently present population: participants who
// left before voting are not waited on, and votes from names that
// have since disconnected still stand.
func AllVoted(p *Poll, roster []string) bool {
	if len(roster) == 0 {
		return false
	}
	for _, name := range roster {
		if !p.HasVoted(name) {
			return false
		}
	}
	return true
}

// Ledger returns the per-voter detail in first-vote order.
func Ledger(p *Poll) []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(p.voteOrder))
	for _, name := range p.voteOrder {
		idx := p.votes[name]
		if idx < 0 || idx >= len(p.Options) {
			continue
		}
		entries = append(entries, LedgerEntry{Name: name, Option: p.Options[idx]})
	}
	return entries
}
