package usecase

// PlacedMsg is the outbox payload written inside the placement transaction
// and published on order.events once the drainer picks it up.
type PlacedMsg struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
	Total   string `json:"total"`
}

// StockReplenishedMsg arrives on Kafka from the warehouse intake feed.
type StockReplenishedMsg struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}
