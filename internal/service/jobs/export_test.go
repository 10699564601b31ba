package jobs

// TrackedLocks returns how many jobs currently hold a mutex.
func (s *Service) TrackedLocks() int {
	n := 0
	s.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
