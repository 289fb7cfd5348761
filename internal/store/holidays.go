package store

import (
	"context"

	"github.com/servicedesk/sla-engine/internal/sla"
)

const holidayColumns = `id, name, date, is_recurring, recurrence_rule, unit_id, department_id, is_active, created_at`

// ListHolidays returns holidays ordered by date. With activeOnly set,
// deactivated rows are skipped.
func ListHolidays(ctx context.Context, db DB, activeOnly bool) ([]sla.Holiday, error) {
	rows, err := db.Query(ctx, `select `+holidayColumns+` from holidays where is_active or not $1 order by date, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []sla.Holiday{}
	for rows.Next() {
		var h sla.Holiday
		if err := rows.Scan(&h.ID, &h.Name, &h.Date, &h.IsRecurring, &h.RecurrenceRule, &h.UnitID, &h.DepartmentID, &h.IsActive, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CreateHoliday inserts h and returns it with its generated ID and timestamp.
func CreateHoliday(ctx context.Context, db DB, h sla.Holiday) (sla.Holiday, error) {
	const q = `insert into holidays (name, date, is_recurring, recurrence_rule, unit_id, department_id, is_active)
values ($1, $2, $3, $4, $5, $6, $7)
returning id, created_at`
	if !h.IsRecurring {
		h.RecurrenceRule = nil
	}
	err := db.QueryRow(ctx, q, h.Name, h.Date, h.IsRecurring, h.RecurrenceRule, h.UnitID, h.DepartmentID, h.IsActive).Scan(&h.ID, &h.CreatedAt)
	return h, err
}
