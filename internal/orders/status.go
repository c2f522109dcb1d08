package orders

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// CREATED -> CREATED is the "payment failed, retry later" outcome.
var validNext = map[Status]map[Status]bool{
	StatusCreated:   {StatusCreated: true, StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no further fulfillment step applies.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}
