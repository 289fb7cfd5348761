package store

import (
	"context"
	"fmt"
	"time"

	"github.com/servicedesk/sla-engine/internal/sla"
)

type scheduleKey struct {
	unit, dept int64
	hasUnit    bool
	hasDept    bool
}

// ListSchedules groups business_hours rows into one schedule per scope.
func ListSchedules(ctx context.Context, db DB) ([]sla.Schedule, error) {
	rows, err := db.Query(ctx, `select unit_id, department_id, dow, start_minute, end_minute from business_hours order by unit_id nulls first, department_id nulls first, dow`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	index := map[scheduleKey]int{}
	out := []sla.Schedule{}
	for rows.Next() {
		var unitID, deptID *int64
		var dow, start, end int
		if err := rows.Scan(&unitID, &deptID, &dow, &start, &end); err != nil {
			return nil, err
		}
		w := sla.Window{StartMinute: start, EndMinute: end}
		if dow < 0 || dow > 6 || !w.Valid() {
			return nil, fmt.Errorf("business_hours: invalid row dow=%d window=%s", dow, w)
		}
		k := scheduleKey{}
		if unitID != nil {
			k.unit, k.hasUnit = *unitID, true
		}
		if deptID != nil {
			k.dept, k.hasDept = *deptID, true
		}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, sla.Schedule{UnitID: unitID, DepartmentID: deptID, Days: map[time.Weekday]sla.Window{}})
		}
		out[i].Days[time.Weekday(dow)] = w
	}
	return out, rows.Err()
}
