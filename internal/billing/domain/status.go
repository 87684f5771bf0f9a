package domain

// BillStatus is the bill lifecycle state.
type BillStatus string

const (
	StatusIssued  BillStatus = "ISSUED"
	StatusPartial BillStatus = "PARTIAL"
	StatusPaid    BillStatus = "PAID"
	StatusOverdue BillStatus = "OVERDUE"
	StatusVoided  BillStatus = "VOIDED"
)

// Terminal reports whether no further transition can leave the state.
func (s BillStatus) Terminal() bool {
	switch s {
	case StatusPaid, StatusVoided:
		return true
	case StatusIssued, StatusPartial, StatusOverdue:
		return false
	}
	return false
}

// CanTransition is the single transition table for the bill state machine.
// VOIDED is reachable from every non-PAID state and is one-way.
func CanTransition(from, to BillStatus) bool {
	switch from {
	case StatusIssued:
		switch to {
		case StatusPartial, StatusPaid, StatusOverdue, StatusVoided:
			return true
		}
	case StatusPartial:
		switch to {
		case StatusPaid, StatusOverdue, StatusVoided:
			return true
		}
	case StatusOverdue:
		switch to {
		case StatusPaid, StatusVoided:
			return true
		}
	case StatusPaid:
		return false
	case StatusVoided:
		return false
	}
	return false
}
