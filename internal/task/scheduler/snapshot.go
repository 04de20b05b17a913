package scheduler

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Enabled:  s.cfg.Enabled,
		Timezone: s.cfg.Timezone,
		Spec:     s.spec,
	}
	if s.loc != nil && snap.Timezone == "" {
		snap.Timezone = s.loc.String()
	}
	if s.c != nil && s.entry != 0 {
		e := s.c.Entry(s.entry)
		snap.Next, snap.Prev = e.Next, e.Prev
	}
	eng := s.engine
	s.mu.Unlock()

	s.smu.Lock()
	snap.Sweeps = s.sweeps
	snap.LastSweep = s.lastSweep
	snap.LastReady = s.lastReady
	s.smu.Unlock()

	s.hmu.Lock()
	snap.Held = len(s.held)
	s.hmu.Unlock()

	if eng != nil {
		snap.Engine = eng.Snapshot()
	}
	return snap
}
