package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/servicedesk/sla-engine/internal/sla"
)

// assign copies src into the pointer dest the way pgx would, including NULL
// into pointer columns.
func assign(dest, src any) error {
	dv := reflect.ValueOf(dest).Elem()
	if src == nil {
		dv.Set(reflect.Zero(dv.Type()))
		return nil
	}
	sv := reflect.ValueOf(src)
	if dv.Kind() == reflect.Pointer && sv.Kind() != reflect.Pointer {
		p := reflect.New(dv.Type().Elem())
		p.Elem().Set(sv.Convert(dv.Type().Elem()))
		dv.Set(p)
		return nil
	}
	if !sv.Type().ConvertibleTo(dv.Type()) {
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
	dv.Set(sv.Convert(dv.Type()))
	return nil
}

type fakeRow struct {
	err  error
	vals []any
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		if err := assign(dest[i], r.vals[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeRows struct {
	data [][]any
	i    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { return r.i < len(r.data) }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i]
	r.i++
	return fakeRow{vals: row}.Scan(dest...)
}

type execCall struct {
	sql  string
	args []any
}

// fakeDB answers queries by table name.
type fakeDB struct {
	tables  map[string][][]any
	row     fakeRow
	tag     string
	queries int
	execs   []execCall
	rowArgs []any
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.queries++
	for table, data := range db.tables {
		if strings.Contains(sql, "from "+table+" ") {
			return &fakeRows{data: data}, nil
		}
	}
	return &fakeRows{}, nil
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.rowArgs = args
	return db.row
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag(db.tag), nil
}

var created = time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)

func configDB() *fakeDB {
	return &fakeDB{tables: map[string][][]any{
		"holidays": {
			{int64(1), "New Year", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true, "FREQ=YEARLY", nil, nil, true, created},
			{int64(2), "Dept retreat", time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC), false, nil, nil, int64(5), true, created},
		},
		"business_hours": {
			{nil, nil, 1, 480, 1020},
			{nil, nil, 2, 480, 1020},
			{nil, int64(5), 1, 600, 720},
		},
		"sla_policies": {
			{int64(2), "dept", nil, nil, int64(5), nil, 30, 240, true, true, created},
			{int64(1), "urgent", nil, nil, nil, "urgent", 15, 120, false, true, created.Add(-time.Hour)},
		},
	}}
}

func TestListHolidays(t *testing.T) {
	hs, err := ListHolidays(context.Background(), configDB(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hs) != 2 {
		t.Fatalf("expected 2 holidays, got %d", len(hs))
	}
	if hs[0].RecurrenceRule == nil || *hs[0].RecurrenceRule != "FREQ=YEARLY" || hs[0].DepartmentID != nil {
		t.Fatalf("unexpected first holiday: %+v", hs[0])
	}
	if hs[1].RecurrenceRule != nil || hs[1].DepartmentID == nil || *hs[1].DepartmentID != 5 {
		t.Fatalf("unexpected second holiday: %+v", hs[1])
	}
}

func TestListSchedulesGroupsByScope(t *testing.T) {
	ss, err := ListSchedules(context.Background(), configDB())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ss) != 2 {
		t.Fatalf("expected 2 schedules, got %+v", ss)
	}
	if ss[0].DepartmentID != nil || len(ss[0].Days) != 2 {
		t.Fatalf("unexpected global schedule: %+v", ss[0])
	}
	if w := ss[1].Days[time.Monday]; ss[1].DepartmentID == nil || w.StartMinute != 600 || w.EndMinute != 720 {
		t.Fatalf("unexpected department schedule: %+v", ss[1])
	}
}

func TestListSchedulesRejectsInvalidRows(t *testing.T) {
	db := &fakeDB{tables: map[string][][]any{"business_hours": {{nil, nil, 1, 1020, 480}}}}
	if _, err := ListSchedules(context.Background(), db); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}

func TestListPolicies(t *testing.T) {
	ps, err := ListPolicies(context.Background(), configDB(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(ps))
	}
	if ps[0].Priority != nil || ps[0].DepartmentID == nil || !ps[0].BusinessHoursOnly {
		t.Fatalf("unexpected first policy: %+v", ps[0])
	}
	if ps[1].Priority == nil || *ps[1].Priority != sla.PriorityUrgent {
		t.Fatalf("unexpected second policy: %+v", ps[1])
	}
}

func TestCreateHolidayDropsRuleForFixedDate(t *testing.T) {
	db := &fakeDB{row: fakeRow{vals: []any{int64(10), created}}}
	r := "FREQ=YEARLY"
	h, err := CreateHoliday(context.Background(), db, sla.Holiday{Name: "x", Date: created, RecurrenceRule: &r, IsActive: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ID != 10 || h.RecurrenceRule != nil {
		t.Fatalf("unexpected holiday: %+v", h)
	}
	if rr, ok := db.rowArgs[3].(*string); !ok || rr != nil {
		t.Fatalf("expected nil rule argument, got %#v", db.rowArgs[3])
	}
}

func TestCreatePolicy(t *testing.T) {
	db := &fakeDB{row: fakeRow{vals: []any{int64(3), created}}}
	pr := sla.PriorityHigh
	p, err := CreatePolicy(context.Background(), db, sla.Policy{Name: "p", Priority: &pr, ResponseTimeMinutes: 10, ResolutionTimeMinutes: 60, IsActive: true})
	if err != nil || p.ID != 3 || !p.CreatedAt.Equal(created) {
		t.Fatalf("unexpected result %+v, %v", p, err)
	}
	if s, ok := db.rowArgs[4].(*string); !ok || s == nil || *s != "high" {
		t.Fatalf("expected priority argument \"high\", got %#v", db.rowArgs[4])
	}
}

func TestDeactivatePolicy(t *testing.T) {
	db := &fakeDB{tag: "UPDATE 1"}
	if err := DeactivatePolicy(context.Background(), db, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "is_active = false") {
		t.Fatalf("expected soft deactivation, got %+v", db.execs)
	}
	db = &fakeDB{tag: "UPDATE 0"}
	if err := DeactivatePolicy(context.Background(), db, 4); !errors.Is(err, ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestGetTicket(t *testing.T) {
	db := &fakeDB{row: fakeRow{vals: []any{int64(7), created, "high", nil, int64(3), int64(5), nil, "open"}}}
	tk, err := GetTicket(context.Background(), db, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Priority != sla.PriorityHigh || tk.ServiceItemID != nil || *tk.DepartmentID != 5 || tk.Status != "open" {
		t.Fatalf("unexpected ticket: %+v", tk)
	}
	db = &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	if _, err := GetTicket(context.Background(), db, 8); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestListOpenTicketsAndSave(t *testing.T) {
	db := &fakeDB{tables: map[string][][]any{"tickets": {
		{int64(1), created, "low", nil, nil, nil, nil, "open"},
		{int64(2), created, "urgent", int64(4), nil, nil, int64(9), "in_progress"},
	}}}
	ts, err := ListOpenTickets(context.Background(), db)
	if err != nil || len(ts) != 2 || ts[1].UnitID == nil || *ts[1].UnitID != 9 {
		t.Fatalf("unexpected tickets %+v, %v", ts, err)
	}
	due := created.Add(time.Hour)
	if err := SaveDueDates(context.Background(), db, 2, 1, created, due); err != nil {
		t.Fatal(err)
	}
	if got := db.execs[0].args; got[0] != int64(1) || got[2] != due || got[3] != int64(2) {
		t.Fatalf("unexpected exec args: %v", got)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewCache(rdb, time.Minute)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	snap, err := LoadSnapshot(ctx, configDB())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, snap); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got.Holidays) != 2 || len(got.Policies) != 2 || got.Schedules[1].Days[time.Monday].StartMinute != 600 {
		t.Fatalf("snapshot did not survive the round trip: %+v", got)
	}
	if y, m, d := got.Holidays[1].Date.Date(); y != 2024 || m != time.July || d != 8 {
		t.Fatalf("holiday date changed: %v", got.Holidays[1].Date)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx); ok {
		t.Fatalf("expected entry to expire")
	}
	if NewCache(nil, time.Minute) != nil || NewCache(rdb, 0) != nil {
		t.Fatalf("expected disabled cache")
	}
}

func TestSourceUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	db := configDB()
	src := &Source{DB: db, Cache: NewCache(rdb, time.Minute)}
	ctx := context.Background()

	if _, err := src.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	first := db.queries
	if _, err := src.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	if db.queries != first {
		t.Fatalf("expected cached snapshot, db queried %d more times", db.queries-first)
	}
	src.Invalidate(ctx)
	if _, err := src.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	if db.queries == first {
		t.Fatalf("expected reload after invalidation")
	}

	uncached := &Source{DB: configDB()}
	snap, err := uncached.Snapshot(ctx)
	if err != nil || len(snap.Policies) != 2 {
		t.Fatalf("unexpected uncached snapshot %+v, %v", snap, err)
	}
}

func TestSnapshotEngine(t *testing.T) {
	snap, err := LoadSnapshot(context.Background(), configDB())
	if err != nil {
		t.Fatal(err)
	}
	loc := time.FixedZone("WITA", 8*3600)
	e := snap.Engine(loc, sla.Schedule{})
	p, err := e.Resolve(sla.TicketAttributes{DepartmentID: sla.ID(5), Priority: sla.PriorityLow})
	if err != nil || p.Name != "dept" {
		t.Fatalf("unexpected policy %+v, %v", p, err)
	}
	// Department 5 only opens Mondays 10:00-12:00 and 2024-07-08 is its holiday.
	next, err := e.NextBusinessStart(time.Date(2024, 7, 8, 9, 0, 0, 0, loc), sla.Scope{DepartmentID: sla.ID(5)})
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 7, 15, 10, 0, 0, 0, loc); !next.Equal(want) {
		t.Fatalf("next business start %v, want %v", next, want)
	}
}
