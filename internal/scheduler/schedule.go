package scheduler

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/j-veylop/glm-tray/internal/models"
)

// Schedule is the per-slot trigger bookkeeping shared by the wake and poll goroutines.
type Schedule struct {
	// LastIntervalFire is the last interval-mode fire, or the slot start time.
	LastIntervalFire time.Time
	// WakeRetryWindowDeadline is zero unless a wake is awaiting confirmation.
	WakeRetryWindowDeadline time.Time
	NextResetEpochMs        *int64
	LastResetMarker         *int64
	// LastTimesMarker is formatted as YYYY-MM-DD-HH:MM.
	LastTimesMarker       string
	WakeTimeoutRetryFired bool
}

// NewSchedule returns the schedule of a slot started at now.
func NewSchedule(now time.Time) Schedule {
	return Schedule{LastIntervalFire: now}
}

func (s Schedule) clone() Schedule {
	c := s
	if s.NextResetEpochMs != nil {
		c.NextResetEpochMs = models.Int64Ptr(*s.NextResetEpochMs)
	}
	if s.LastResetMarker != nil {
		c.LastResetMarker = models.Int64Ptr(*s.LastResetMarker)
	}
	return c
}

// ShouldFireWake evaluates every enabled trigger mode and returns the reason of the
// ones that match at now.
func ShouldFireWake(cfg models.SlotConfig, s Schedule, now time.Time) (string, bool) {
	var reasons []string

	if intervalDue(cfg, s, now) {
		reasons = append(reasons, fmt.Sprintf("interval (%d min elapsed)", cfg.ScheduleIntervalMinutes))
	}
	if hm, ok := timesDue(cfg, s, now); ok {
		reasons = append(reasons, "times (matched "+hm+")")
	}
	if afterResetDue(cfg, s, now) {
		reasons = append(reasons, fmt.Sprintf("after reset (+%d min)", cfg.ScheduleAfterResetMinutes))
	}

	if len(reasons) == 0 {
		return "", false
	}
	return strings.Join(reasons, ", "), true
}

// UpdateMarkers advances the markers of the modes that are enabled and matching at now.
func UpdateMarkers(cfg models.SlotConfig, s *Schedule, now time.Time) {
	if intervalDue(cfg, *s, now) {
		s.LastIntervalFire = now
	}
	if _, ok := timesDue(cfg, *s, now); ok {
		s.LastTimesMarker = timesMarker(now)
	}
	if afterResetDue(cfg, *s, now) {
		s.LastResetMarker = models.Int64Ptr(*s.NextResetEpochMs)
	}
}

func intervalDue(cfg models.SlotConfig, s Schedule, now time.Time) bool {
	if !cfg.ScheduleIntervalEnabled {
		return false
	}
	interval := time.Duration(max(cfg.ScheduleIntervalMinutes, 1)) * time.Minute
	return now.Sub(s.LastIntervalFire) >= interval
}

func timesDue(cfg models.SlotConfig, s Schedule, now time.Time) (string, bool) {
	if !cfg.ScheduleTimesEnabled {
		return "", false
	}
	hm := now.Format("15:04")
	if !slices.Contains(cfg.ScheduleTimes, hm) {
		return "", false
	}
	if s.LastTimesMarker == timesMarker(now) {
		return "", false
	}
	return hm, true
}

func afterResetDue(cfg models.SlotConfig, s Schedule, now time.Time) bool {
	if !cfg.ScheduleAfterResetEnabled || s.NextResetEpochMs == nil {
		return false
	}
	reset := *s.NextResetEpochMs
	target := reset + int64(max(cfg.ScheduleAfterResetMinutes, 1))*time.Minute.Milliseconds()
	if now.UnixMilli() < target {
		return false
	}
	return s.LastResetMarker == nil || *s.LastResetMarker != reset
}

func timesMarker(now time.Time) string {
	return now.Format("2006-01-02-15:04")
}

var timesParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextScheduledWake returns the earliest upcoming trigger across enabled modes,
// or the zero time when none is known.
func NextScheduledWake(cfg models.SlotConfig, s Schedule, now time.Time) time.Time {
	var next time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}

	if cfg.ScheduleIntervalEnabled {
		at := s.LastIntervalFire.Add(time.Duration(max(cfg.ScheduleIntervalMinutes, 1)) * time.Minute)
		if at.Before(now) {
			at = now
		}
		consider(at)
	}

	if cfg.ScheduleTimesEnabled {
		for _, hm := range cfg.ScheduleTimes {
			sched, err := timesParser.Parse(cronSpec(hm))
			if err != nil {
				continue
			}
			if hm == now.Format("15:04") && s.LastTimesMarker != timesMarker(now) {
				consider(now)
				continue
			}
			consider(sched.Next(now))
		}
	}

	if cfg.ScheduleAfterResetEnabled && s.NextResetEpochMs != nil {
		reset := *s.NextResetEpochMs
		if s.LastResetMarker == nil || *s.LastResetMarker != reset {
			at := time.UnixMilli(reset).Add(time.Duration(max(cfg.ScheduleAfterResetMinutes, 1)) * time.Minute)
			if at.Before(now) {
				at = now
			}
			consider(at)
		}
	}

	return next
}

// cronSpec converts HH:MM to a daily cron expression.
func cronSpec(hm string) string {
	h, m, _ := strings.Cut(hm, ":")
	return m + " " + h + " * * *"
}

// scheduleState guards a Schedule for concurrent access by the slot goroutines.
type scheduleState struct {
	s  Schedule
	mu sync.RWMutex
}

func (st *scheduleState) Load() Schedule {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.clone()
}

func (st *scheduleState) Update(fn func(*Schedule)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.s)
}
