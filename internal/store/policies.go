package store

import (
	"context"

	"github.com/servicedesk/sla-engine/internal/sla"
)

const policyColumns = `id, name, service_item_id, service_catalog_id, department_id, priority,
response_time_minutes, resolution_time_minutes, business_hours_only, is_active, created_at`

// ListPolicies returns SLA policies, newest first.
func ListPolicies(ctx context.Context, db DB, activeOnly bool) ([]sla.Policy, error) {
	rows, err := db.Query(ctx, `select `+policyColumns+` from sla_policies where is_active or not $1 order by created_at desc, id desc`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []sla.Policy{}
	for rows.Next() {
		var p sla.Policy
		var priority *string
		if err := rows.Scan(&p.ID, &p.Name, &p.ServiceItemID, &p.ServiceCatalogID, &p.DepartmentID, &priority,
			&p.ResponseTimeMinutes, &p.ResolutionTimeMinutes, &p.BusinessHoursOnly, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		if priority != nil {
			pr := sla.Priority(*priority)
			p.Priority = &pr
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePolicy inserts p and returns it with its generated ID and timestamp.
func CreatePolicy(ctx context.Context, db DB, p sla.Policy) (sla.Policy, error) {
	const q = `insert into sla_policies (name, service_item_id, service_catalog_id, department_id, priority,
response_time_minutes, resolution_time_minutes, business_hours_only, is_active)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
returning id, created_at`
	var priority *string
	if p.Priority != nil {
		s := string(*p.Priority)
		priority = &s
	}
	err := db.QueryRow(ctx, q, p.Name, p.ServiceItemID, p.ServiceCatalogID, p.DepartmentID, priority,
		p.ResponseTimeMinutes, p.ResolutionTimeMinutes, p.BusinessHoursOnly, p.IsActive).Scan(&p.ID, &p.CreatedAt)
	return p, err
}

// DeactivatePolicy soft-deletes a policy. Policies are never removed so that
// tickets keep pointing at the policy that governed them.
func DeactivatePolicy(ctx context.Context, db DB, id int64) error {
	tag, err := db.Exec(ctx, `update sla_policies set is_active = false where id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPolicyNotFound
	}
	return nil
}
