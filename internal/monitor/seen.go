package monitor

import "github.com/gagliardetto/solana-go"

// seenSet is a bounded, recency-ordered set of processed signatures. When
// the cap is reached the oldest entry is evicted. Callers hold the owning
// leader's lock.
type seenSet struct {
	cap   int
	order []solana.Signature
	index map[solana.Signature]struct{}
}

func newSeenSet(cap int) *seenSet {
	return &seenSet{
		cap:   cap,
		index: make(map[solana.Signature]struct{}, cap),
	}
}

func (s *seenSet) Contains(sig solana.Signature) bool {
	_, ok := s.index[sig]
	return ok
}

// Add marks sig as seen and reports whether it was new.
func (s *seenSet) Add(sig solana.Signature) bool {
	if s.Contains(sig) {
		return false
	}
	s.index[sig] = struct{}{}
	s.order = append(s.order, sig)
	if len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.index, oldest)
	}
	return true
}
