package gateway

import "time"

type counters struct {
	activated   uint64
	deactivated uint64
	teleported  uint64
	queued      uint64
	discarded   uint64
	noDest      uint64
	powerIn     uint64
	powerOut    uint64
}

// SessionMetrics is published once per tick and read without locking.
type SessionMetrics struct {
	Session string `json:"session"`
	Tick    uint64 `json:"tick"`

	Portals   int `json:"portals"`
	Addresses int `json:"addresses"`
	Entities  int `json:"entities"`
	Cooldowns int `json:"cooldowns"`
	Queue     int `json:"queue"`

	Activated     uint64  `json:"activated_total"`
	Deactivated   uint64  `json:"deactivated_total"`
	Teleported    uint64  `json:"teleported_total"`
	Queued        uint64  `json:"queued_total"`
	Discarded     uint64  `json:"discarded_total"`
	NoDestination uint64  `json:"no_destination_total"`
	PowerAdded    uint64  `json:"power_added_total"`
	PowerSpent    uint64  `json:"power_spent_total"`
	StoredPower   int     `json:"stored_power"`
	StepMS        float64 `json:"step_ms"`
}

func (s *Session) Metrics() SessionMetrics {
	if s == nil {
		return SessionMetrics{}
	}
	v := s.metrics.Load()
	if v == nil {
		return SessionMetrics{Session: s.cfg.ID}
	}
	m, ok := v.(SessionMetrics)
	if !ok {
		return SessionMetrics{Session: s.cfg.ID}
	}
	return m
}

func (s *Session) publishMetrics(tick uint64, took time.Duration) {
	stored := 0
	portals := s.reg.All()
	for _, p := range portals {
		stored += s.reg.Power(p)
	}
	s.metrics.Store(SessionMetrics{
		Session:       s.cfg.ID,
		Tick:          tick,
		Portals:       len(portals),
		Addresses:     len(s.reg.Addresses()),
		Entities:      len(s.world.Entities()),
		Cooldowns:     len(s.cooldowns),
		Queue:         s.queue.Len(),
		Activated:     s.stats.activated,
		Deactivated:   s.stats.deactivated,
		Teleported:    s.stats.teleported,
		Queued:        s.stats.queued,
		Discarded:     s.stats.discarded,
		NoDestination: s.stats.noDest,
		PowerAdded:    s.stats.powerIn,
		PowerSpent:    s.stats.powerOut,
		StoredPower:   stored,
		StepMS:        float64(took.Microseconds()) / 1000,
	})
}
