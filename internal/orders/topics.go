package orders

const (
	TopicOrderFinalized = "order.finalized"
	EventOrderFinalized = "OrderFinalized"
)

type OrderFinalizedPayload struct {
	OrderID     string `json:"order_id"`
	FinalStatus Status `json:"final_status"`
	PaymentID   string `json:"payment_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	TotalAmount string `json:"total_amount"`
}
