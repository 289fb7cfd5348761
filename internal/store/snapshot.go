package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/servicedesk/sla-engine/internal/sla"
)

// Snapshot is the active engine configuration at one point in time.
type Snapshot struct {
	Holidays  []sla.Holiday  `json:"holidays"`
	Schedules []sla.Schedule `json:"schedules"`
	Policies  []sla.Policy   `json:"policies"`
	LoadedAt  time.Time      `json:"loadedAt"`
}

// LoadSnapshot reads active holidays, schedules and policies.
func LoadSnapshot(ctx context.Context, db DB) (Snapshot, error) {
	holidays, err := ListHolidays(ctx, db, true)
	if err != nil {
		return Snapshot{}, err
	}
	schedules, err := ListSchedules(ctx, db)
	if err != nil {
		return Snapshot{}, err
	}
	policies, err := ListPolicies(ctx, db, true)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Holidays: holidays, Schedules: schedules, Policies: policies, LoadedAt: time.Now().UTC()}, nil
}

// Engine builds an engine over the snapshot.
func (s Snapshot) Engine(loc *time.Location, fallback sla.Schedule) *sla.Engine {
	return sla.New(sla.Inputs{
		Location:        loc,
		Holidays:        s.Holidays,
		Schedules:       s.Schedules,
		DefaultSchedule: fallback,
		Policies:        s.Policies,
	})
}

// Source serves snapshots from the cache when possible and from Postgres
// otherwise. A nil Cache disables caching.
type Source struct {
	DB    DB
	Cache *Cache
}

// Snapshot returns the current engine configuration.
func (s *Source) Snapshot(ctx context.Context) (Snapshot, error) {
	if snap, ok, err := s.Cache.Get(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("sla snapshot cache read")
	} else if ok {
		return snap, nil
	}
	snap, err := LoadSnapshot(ctx, s.DB)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.Cache.Put(ctx, snap); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("sla snapshot cache write")
	}
	return snap, nil
}

// Invalidate drops the cached snapshot after a configuration change.
func (s *Source) Invalidate(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("sla snapshot cache invalidate")
	}
}
