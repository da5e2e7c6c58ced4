package services

import (
	"time"

	"lifedash/internal/analytics"
	"lifedash/internal/records"
)

// DashboardService serves memoized overviews computed from the current store snapshot.
type DashboardService struct {
	store *records.Store
	memo  *analytics.Memo
	loc   *time.Location
	now   func() time.Time
}

type DashboardOption func(*DashboardService)

// WithNow overrides the wall clock, for tests and replays.
func WithNow(now func() time.Time) DashboardOption {
	return func(s *DashboardService) { s.now = now }
}

func NewDashboardService(store *records.Store, memo *analytics.Memo, loc *time.Location, opts ...DashboardOption) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	s := &DashboardService{store: store, memo: memo, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time in the dashboard's location.
func (s *DashboardService) Now() time.Time {
	return s.now().In(s.loc)
}

// Overview returns the dashboard for month of the current year. A zero month
// selects the current one.
func (s *DashboardService) Overview(month time.Month) analytics.Overview {
	now := s.Now()
	if month < time.January || month > time.December {
		month = now.Month()
	}
	snap := s.store.Snapshot()
	return s.memo.Overview(snap.Version(), func() analytics.Input {
		return analytics.Input{
			Transactions: snap.Transactions(),
			Categories:   snap.Categories(),
			Settings:     snap.Settings(),
		}
	}, month, now)
}
