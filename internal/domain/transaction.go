package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a transaction record.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusVoided    TransactionStatus = "voided"
	StatusRefunded  TransactionStatus = "refunded"
)

// TransactionKind distinguishes sales from the compensating refund records.
type TransactionKind string

const (
	KindSale   TransactionKind = "sale"
	KindRefund TransactionKind = "refund"
)

// PaymentMethod is a tender instrument.
type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentCredit        PaymentMethod = "credit"
	PaymentDebit         PaymentMethod = "debit"
	PaymentEBT           PaymentMethod = "ebt"
	PaymentGiftCard      PaymentMethod = "gift_card"
	PaymentStoreCredit   PaymentMethod = "store_credit"
	PaymentMobilePayment PaymentMethod = "mobile_payment"
)

// Valid reports whether m is an accepted tender method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentDebit, PaymentEBT, PaymentGiftCard, PaymentStoreCredit, PaymentMobilePayment:
		return true
	}
	return false
}

// Payment is one tender applied to a transaction.
type Payment struct {
	Method          PaymentMethod   `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	CardLast4       string          `json:"cardLast4,omitempty"`
	AuthCode        string          `json:"authCode,omitempty"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
}

// TransactionItem is a frozen snapshot of a sold (or refunded) line. It does not
// follow later catalog edits.
type TransactionItem struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	PLU        string          `json:"plu,omitempty"`
	CategoryID string          `json:"categoryId,omitempty"`
	PriceType  PriceType       `json:"priceType"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Taxable    bool            `json:"taxable"`
	TaxRate    decimal.Decimal `json:"taxRate"`
	BaseAmount decimal.Decimal `json:"baseAmount"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
}

// AppliedCoupon records a coupon that contributed to a settlement.
type AppliedCoupon struct {
	CouponID string          `json:"couponId"`
	Code     string          `json:"code"`
	Type     DiscountType    `json:"type"`
	Discount decimal.Decimal `json:"discount"`
}

// Transaction is the immutable settlement record. After creation only Status
// and the void/refund bookkeeping fields change.
type Transaction struct {
	ID                    string            `json:"id"`
	Kind                  TransactionKind   `json:"kind"`
	Status                TransactionStatus `json:"status"`
	CashierID             string            `json:"cashierId"`
	CustomerID            string            `json:"customerId,omitempty"`
	OriginalTransactionID string            `json:"originalTransactionId,omitempty"`
	Items                 []TransactionItem `json:"items"`
	Payments              []Payment         `json:"payments"`
	Coupons               []AppliedCoupon   `json:"coupons,omitempty"`
	Subtotal              decimal.Decimal   `json:"subtotal"`
	LineDiscount          decimal.Decimal   `json:"lineDiscount"`
	CouponDiscount        decimal.Decimal   `json:"couponDiscount"`
	LoyaltyDiscount       decimal.Decimal   `json:"loyaltyDiscount"`
	TotalDiscount         decimal.Decimal   `json:"totalDiscount"`
	Tax                   decimal.Decimal   `json:"tax"`
	Total                 decimal.Decimal   `json:"total"`
	AmountTendered        decimal.Decimal   `json:"amountTendered"`
	Change                decimal.Decimal   `json:"change"`
	PointsEarned          int64             `json:"pointsEarned"`
	PointsUsed            int64             `json:"pointsUsed"`
	// TierBefore and LoyaltySequence snapshot the customer's account at
	// commit: the tier held before the sale and the transaction count after
	// it. A void restores TierBefore while no later sale has been recorded.
	TierBefore      Tier       `json:"tierBefore,omitempty"`
	LoyaltySequence int        `json:"loyaltySequence,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	VoidedAt        *time.Time `json:"voidedAt,omitempty"`
	VoidedBy        string     `json:"voidedBy,omitempty"`
	RefundedAt      *time.Time `json:"refundedAt,omitempty"`
	RefundedBy      string     `json:"refundedBy,omitempty"`
}
