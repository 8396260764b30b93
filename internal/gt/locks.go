package gt

import "sync"

// DefaultStripes is the number of lock stripes used when the configuration
// does not set one.
const DefaultStripes = 64

// stripes is a fixed set of mutexes shared by hashing an index onto them.
// The count is a power of two so the stripe is idx & mask.
type stripes struct {
	mu   []sync.Mutex
	mask int
}

func newStripes(n int) stripes {
	if n <= 0 {
		n = DefaultStripes
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return stripes{mu: make([]sync.Mutex, size), mask: size - 1}
}

func (s *stripes) lock(idx int)   { s.mu[idx&s.mask].Lock() }
func (s *stripes) unlock(idx int) { s.mu[idx&s.mask].Unlock() }

// lockPair locks the stripes of a and b in ascending stripe order, taking a
// shared stripe only once.
func (s *stripes) lockPair(a, b int) {
	sa, sb := a&s.mask, b&s.mask
	switch {
	case sa == sb:
		s.mu[sa].Lock()
	case sa < sb:
		s.mu[sa].Lock()
		s.mu[sb].Lock()
	default:
		s.mu[sb].Lock()
		s.mu[sa].Lock()
	}
}

func (s *stripes) unlockPair(a, b int) {
	sa, sb := a&s.mask, b&s.mask
	s.mu[sa].Unlock()
	if sa != sb {
		s.mu[sb].Unlock()
	}
}
