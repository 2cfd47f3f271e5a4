package events

import "github.com/shopspring/decimal"

// Topic constants for domain events emitted by the settlement engine.
const (
	TopicTransactionCompleted = "transaction.completed"
	TopicTransactionVoided    = "transaction.voided"
	TopicTransactionRefunded  = "transaction.refunded"
	TopicInventoryLowStock    = "inventory.low_stock"
)

// DefaultTopics returns every topic the engine emits.
func DefaultTopics() []string {
	return []string{
		TopicTransactionCompleted,
		TopicTransactionVoided,
		TopicTransactionRefunded,
		TopicInventoryLowStock,
	}
}

// TransactionPayload is the body of the transaction.* topics.
type TransactionPayload struct {
	TransactionID string          `json:"transactionId"`
	OriginalID    string          `json:"originalTransactionId,omitempty"`
	CashierID     string          `json:"cashierId"`
	CustomerID    string          `json:"customerId,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Items         int             `json:"items"`
	PointsEarned  int64           `json:"pointsEarned"`
	PointsUsed    int64           `json:"pointsUsed"`
	Reason        string          `json:"reason,omitempty"`
	// ActorID is who voided or refunded; empty for sales.
	ActorID string `json:"actorId,omitempty"`
}

// LowStockPayload is the body of inventory.low_stock.
type LowStockPayload struct {
	ProductID         string          `json:"productId"`
	Name              string          `json:"name"`
	StockQuantity     decimal.Decimal `json:"stockQuantity"`
	LowStockThreshold decimal.Decimal `json:"lowStockThreshold"`
	ReorderPoint      decimal.Decimal `json:"reorderPoint"`
	Reorder           bool            `json:"reorder"`
}
