package domain

import "time"

const (
	// LockoutThreshold is the number of consecutive failures after which
	// attempts are rejected for a while.
	LockoutThreshold = 5
	// LockoutBaseDuration is the duration of the first lockout window.
	LockoutBaseDuration = 30 * time.Second
	// LockoutMaxDuration caps every lockout window.
	LockoutMaxDuration = time.Hour

	// tamperedFailedAttempts is the counter assigned to a record that fails
	// the integrity check.
	tamperedFailedAttempts = 1000
)

// LockoutStatus ...
type LockoutStatus int

const (
	LockoutStatusUnlocked LockoutStatus = iota
	LockoutStatusSoftFailure
	LockoutStatusLocked
)

func (s LockoutStatus) String() string {
	switch s {
	case LockoutStatusUnlocked:
		return "unlocked"
	case LockoutStatusSoftFailure:
		return "soft_failure"
	case LockoutStatusLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// LockoutState tracks the failed authentication attempts of a wallet. The
// integrity tag is computed and checked by the storage layer.
type LockoutState struct {
	FailedAttempts int        `json:"failedAttempts"`
	LockoutEndUtc  *time.Time `json:"lockoutEndUtc,omitempty"`
	UpdatedAtUtc   time.Time  `json:"updatedAtUtc"`
	IntegrityTag   string     `json:"integrityTag"`
}

// NewLockoutState returns a clean state.
func NewLockoutState() *LockoutState {
	return &LockoutState{}
}

// TamperedLockoutState is the state assumed for a record that can't be
// trusted: heavily failed and locked for the max duration.
func TamperedLockoutState(now time.Time) *LockoutState {
	end := now.Add(LockoutMaxDuration).UTC()
	return &LockoutState{
		FailedAttempts: tamperedFailedAttempts,
		LockoutEndUtc:  &end,
		UpdatedAtUtc:   now.UTC(),
	}
}

// RegisterFailure counts a failed attempt and opens a new lockout window
// once the threshold is reached.
func (s *LockoutState) RegisterFailure(now time.Time) {
	s.FailedAttempts++
	s.UpdatedAtUtc = now.UTC()
	if s.FailedAttempts < LockoutThreshold {
		return
	}
	end := now.Add(LockoutDuration(s.FailedAttempts)).UTC()
	s.LockoutEndUtc = &end
}

// Reset brings the state back to unlocked.
func (s *LockoutState) Reset(now time.Time) {
	s.FailedAttempts = 0
	s.LockoutEndUtc = nil
	s.UpdatedAtUtc = now.UTC()
}

// IsLocked returns whether now falls in the lockout window.
func (s *LockoutState) IsLocked(now time.Time) bool {
	return s.LockoutEndUtc != nil && now.Before(*s.LockoutEndUtc)
}

// IsClean returns whether the state holds no failure at all.
func (s *LockoutState) IsClean() bool {
	return s.FailedAttempts == 0 && s.LockoutEndUtc == nil
}

// Status ...
func (s *LockoutState) Status(now time.Time) LockoutStatus {
	switch {
	case s.IsLocked(now):
		return LockoutStatusLocked
	case s.FailedAttempts > 0:
		return LockoutStatusSoftFailure
	default:
		return LockoutStatusUnlocked
	}
}

// Err returns a *LockoutError if the state is locked at now.
func (s *LockoutState) Err(now time.Time) error {
	if !s.IsLocked(now) {
		return nil
	}
	return &LockoutError{Until: *s.LockoutEndUtc}
}

// LockoutDuration returns min(max, base·2^(failed-threshold)), or zero below
// the threshold.
func LockoutDuration(failedAttempts int) time.Duration {
	if failedAttempts < LockoutThreshold {
		return 0
	}
	exp := failedAttempts - LockoutThreshold
	duration := LockoutBaseDuration
	for i := 0; i < exp; i++ {
		duration *= 2
		if duration >= LockoutMaxDuration {
			return LockoutMaxDuration
		}
	}
	return duration
}
