package sla

// Scope identifies the unit and department a ticket belongs to, or a holiday
// or schedule applies to. Nil fields are wildcards.
type Scope struct {
	UnitID       *int64 `json:"unitId,omitempty"`
	DepartmentID *int64 `json:"departmentId,omitempty"`
}

// ID returns a pointer to v, for building optional selectors.
func ID(v int64) *int64 { return &v }

// covers reports whether a record scoped to (unitID, deptID) applies to s.
// Set fields must match; a record with both set only applies when both match.
func (s Scope) covers(unitID, deptID *int64) bool {
	if unitID != nil && !sameID(unitID, s.UnitID) {
		return false
	}
	if deptID != nil && !sameID(deptID, s.DepartmentID) {
		return false
	}
	return true
}

// specificity ranks a record scope: unit+department, unit, department, global.
func specificity(unitID, deptID *int64) int {
	switch {
	case unitID != nil && deptID != nil:
		return 3
	case unitID != nil:
		return 2
	case deptID != nil:
		return 1
	}
	return 0
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
