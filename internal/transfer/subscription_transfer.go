package transfer

import "time"

// SubscriptionEvent is the billing provider's webhook payload, reduced to
// the fields the handler consumes. The provider echoes our user id back in
// metadata.internal_customer_id.
type SubscriptionEvent struct {
	ID        string `json:"id"`
	EventType string `json:"eventType"`
	CreatedAt int64  `json:"created_at"`
	Object    struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Status  string `json:"status"`
		Product struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"product"`
		Customer struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"customer"`
		CurrentPeriodEndDate time.Time `json:"current_period_end_date"`
		Metadata             struct {
			InternalCustomerID string `json:"internal_customer_id"`
		} `json:"metadata"`
	} `json:"object"`
}
