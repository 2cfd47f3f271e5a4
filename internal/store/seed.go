package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/domain"
)

// Seeder is implemented by backends that accept demo data.
type Seeder interface {
	PutProduct(ctx context.Context, p domain.Product) error
	PutCustomer(ctx context.Context, c domain.Customer) error
	CreateCoupon(ctx context.Context, c domain.Coupon) (domain.Coupon, error)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DemoProducts is a small catalog covering weighed, taxable and age-restricted items.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{ID: "banana", PLU: "4011", Name: "Bananas", CategoryID: "produce", PriceType: domain.PriceWeight, Price: d("0.69"), Active: true,
			Inventory: domain.Inventory{StockQuantity: d("120"), StockCapacity: d("200"), LowStockThreshold: d("20"), ReorderPoint: d("30")}},
		{ID: "milk-1gal", Barcode: "041303001165", Name: "Whole Milk 1 gal", CategoryID: "dairy", PriceType: domain.PriceFixed, Price: d("3.99"), Active: true,
			Inventory: domain.Inventory{StockQuantity: d("48"), StockCapacity: d("60"), LowStockThreshold: d("10"), ReorderPoint: d("12")}},
		{ID: "bread-wheat", Barcode: "072250011372", Name: "Wheat Bread", CategoryID: "bakery", PriceType: domain.PriceFixed, Price: d("2.49"), Active: true,
			Inventory: domain.Inventory{StockQuantity: d("30"), StockCapacity: d("40"), LowStockThreshold: d("5"), ReorderPoint: d("8")}},
		{ID: "soap-bar", Barcode: "011111611207", Name: "Bar Soap", CategoryID: "household", PriceType: domain.PriceFixed, Price: d("5.00"), Taxable: true, TaxRate: d("0.08"), Active: true,
			Inventory: domain.Inventory{StockQuantity: d("25"), StockCapacity: d("50"), LowStockThreshold: d("5"), ReorderPoint: d("10")}},
		{ID: "red-wine", Barcode: "089744757202", Name: "Red Wine 750ml", CategoryID: "alcohol", PriceType: domain.PriceFixed, Price: d("12.99"), Taxable: true, TaxRate: d("0.08"), MinimumAge: 21, Active: true,
			Inventory: domain.Inventory{StockQuantity: d("18"), StockCapacity: d("24"), LowStockThreshold: d("4"), ReorderPoint: d("6")}},
	}
}

// DemoCustomers returns one loyalty member and one walk-in account.
func DemoCustomers() []domain.Customer {
	return []domain.Customer{
		{ID: "cust-ana", Name: "Ana Member", Loyalty: domain.LoyaltyAccount{Points: 850, Tier: domain.TierSilver, MembershipID: "LM-1001", LifetimeSpend: d("1320.50"), TransactionCount: 41}},
		{ID: "cust-guest", Name: "Walk-in", Loyalty: domain.LoyaltyAccount{Tier: domain.TierBronze}},
	}
}

// DemoCoupons returns one coupon per common variant.
func DemoCoupons() []domain.Coupon {
	limit := 500
	once := 1
	return []domain.Coupon{
		{ID: "cpn-save10", Code: "SAVE10", Description: "10% off the basket", Type: domain.DiscountPercentage, Value: d("10"), MinimumPurchase: d("20"), UsageLimit: &limit, PerCustomerLimit: &once, Active: true},
		{ID: "cpn-dairy-bogo", Code: "DAIRYBOGO", Description: "Buy one get one on dairy", Type: domain.DiscountBOGO, CategoryIDs: []string{"dairy"}, Stackable: true, Active: true},
		{ID: "cpn-five", Code: "FIVEOFF", Description: "$5 off for members", Type: domain.DiscountFixedAmount, Value: d("5"), MinimumPurchase: d("25"), RequiresMembership: true, Stackable: true, Active: true},
	}
}

// Seed loads the demo catalog, customers and coupons into s.
func Seed(ctx context.Context, s Seeder) error {
	for _, p := range DemoProducts() {
		if err := s.PutProduct(ctx, p); err != nil {
			return err
		}
	}
	for _, c := range DemoCustomers() {
		if err := s.PutCustomer(ctx, c); err != nil {
			return err
		}
	}
	for _, c := range DemoCoupons() {
		if _, err := s.CreateCoupon(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
