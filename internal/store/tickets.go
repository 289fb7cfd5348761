package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/servicedesk/sla-engine/internal/sla"
)

// TerminalStatuses are ticket statuses whose SLA clock has stopped.
var TerminalStatuses = []string{"resolved", "closed", "cancelled"}

const ticketColumns = `id, created_at, priority, service_item_id, service_catalog_id, department_id, unit_id, status`

func scanTicket(row pgx.Row) (sla.Ticket, error) {
	var t sla.Ticket
	var priority string
	if err := row.Scan(&t.ID, &t.CreatedAt, &priority, &t.ServiceItemID, &t.ServiceCatalogID, &t.DepartmentID, &t.UnitID, &t.Status); err != nil {
		return sla.Ticket{}, err
	}
	t.Priority = sla.Priority(priority)
	return t, nil
}

// GetTicket loads the SLA-relevant fields of a ticket.
func GetTicket(ctx context.Context, db DB, id int64) (sla.Ticket, error) {
	t, err := scanTicket(db.QueryRow(ctx, `select `+ticketColumns+` from tickets where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return sla.Ticket{}, fmt.Errorf("ticket %d: %w", id, ErrTicketNotFound)
	}
	return t, err
}

// ListOpenTickets returns tickets whose status is not terminal.
func ListOpenTickets(ctx context.Context, db DB) ([]sla.Ticket, error) {
	rows, err := db.Query(ctx, `select `+ticketColumns+` from tickets where status <> all($1) order by id`, TerminalStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []sla.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveDueDates records the governing policy and due dates on a ticket.
func SaveDueDates(ctx context.Context, db DB, ticketID, policyID int64, responseDue, due time.Time) error {
	_, err := db.Exec(ctx, `update tickets set sla_policy_id = $1, sla_response_due_at = $2, sla_due_at = $3 where id = $4`,
		policyID, responseDue, due, ticketID)
	return err
}
