package settlement

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/cart"
	"github.com/noah-isme/grocery-pos/internal/coupon"
	"github.com/noah-isme/grocery-pos/internal/discount"
	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/pricing"
)

// plan is the result of the read-only pricing pass. Nothing is mutated until
// it is committed.
type plan struct {
	txn       domain.Transaction
	products  map[string]domain.Product
	reserve   map[string]decimal.Decimal
	customer  *domain.Customer
	accepted  []domain.Coupon
	discounts discount.Result
}

// productIDs returns the reserved products in a stable order.
func (p *plan) productIDs() []string {
	ids := make([]string, 0, len(p.reserve))
	for id := range p.reserve {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// price runs Validating, Pricing, StockReserving (as a check only) and
// Totaling for the cart.
func (s *Service) price(ctx context.Context, c cart.Cart) (*plan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p := &plan{
		products: make(map[string]domain.Product, len(c.Lines)),
		reserve:  make(map[string]decimal.Decimal, len(c.Lines)),
	}

	if c.CustomerID != "" {
		cust, err := s.deps.Customers.GetCustomer(ctx, c.CustomerID)
		if err != nil {
			return nil, err
		}
		p.customer = &cust
	}
	exempt := p.customer != nil && p.customer.TaxExempt

	subtotal, lineDiscount, tax := decimal.Zero, decimal.Zero, decimal.Zero
	items := make([]domain.TransactionItem, 0, len(c.Lines))
	couponLines := make([]coupon.Line, 0, len(c.Lines))
	for _, line := range c.Lines {
		product, ok := p.products[line.ProductID]
		if !ok {
			var err error
			product, err = s.deps.Products.GetProduct(ctx, line.ProductID)
			if err != nil {
				return nil, err
			}
			p.products[product.ID] = product
		}
		if !product.Active {
			return nil, domain.Invalid("items", "product %s is not for sale", product.ID)
		}
		if product.AgeRestricted() && !c.AgeVerified {
			return nil, domain.Invalid("ageVerified", "product %s requires age verification (minimum age %d)", product.ID, product.MinimumAge)
		}

		base, err := pricing.BaseAmount(pricing.Line{PriceType: product.PriceType, Quantity: line.Quantity, UnitPrice: product.Price})
		if err != nil {
			return nil, err
		}
		lineDisc := pricing.Round(line.Discount)
		if lineDisc.GreaterThan(base) {
			return nil, domain.Invalid("items.discount", "discount %s exceeds line amount %s for product %s", lineDisc.StringFixed(2), base.StringFixed(2), product.ID)
		}
		net := base.Sub(lineDisc)
		lineTax := pricing.Tax(pricing.TaxInput{Taxable: product.Taxable, Rate: product.TaxRate, Exempt: exempt, Amount: net})

		requested := p.reserve[product.ID].Add(line.Quantity)
		if product.Inventory.StockQuantity.LessThan(requested) {
			return nil, &domain.InsufficientStockError{ProductID: product.ID, Available: product.Inventory.StockQuantity, Requested: requested}
		}
		p.reserve[product.ID] = requested

		subtotal = subtotal.Add(base)
		lineDiscount = lineDiscount.Add(lineDisc)
		tax = tax.Add(lineTax)
		items = append(items, domain.TransactionItem{
			ProductID:  product.ID,
			Name:       product.Name,
			PLU:        product.PLU,
			CategoryID: product.CategoryID,
			PriceType:  product.PriceType,
			Quantity:   line.Quantity,
			UnitPrice:  product.Price,
			Taxable:    product.Taxable,
			TaxRate:    product.TaxRate,
			BaseAmount: base,
			Discount:   lineDisc,
			Tax:        lineTax,
			LineTotal:  net,
		})
		couponLines = append(couponLines, coupon.Line{
			ProductID:  product.ID,
			CategoryID: product.CategoryID,
			PriceType:  product.PriceType,
			Quantity:   line.Quantity,
			UnitPrice:  product.Price,
			Amount:     net,
		})
	}

	customerID := ""
	if p.customer != nil {
		customerID = p.customer.ID
	}
	candidates := make([]discount.Candidate, 0, len(c.CouponCodes))
	for _, code := range c.CouponCodes {
		cp, err := s.deps.Coupons.FindCouponByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		uses := 0
		if customerID != "" {
			if uses, err = s.deps.Coupons.CouponUsage(ctx, cp.ID, customerID); err != nil {
				return nil, err
			}
		}
		candidates = append(candidates, discount.Candidate{Coupon: cp, CustomerUses: uses})
	}

	res, err := s.resolver.Resolve(discount.Input{
		Lines:           couponLines,
		Subtotal:        subtotal,
		LineDiscount:    lineDiscount,
		Coupons:         candidates,
		Customer:        p.customer,
		PointsRequested: c.LoyaltyPoints,
		Now:             s.now().In(s.cfg.Location),
		Strict:          s.cfg.Strict,
	})
	if err != nil {
		return nil, err
	}
	p.discounts = res
	for _, out := range res.Accepted() {
		for _, cand := range candidates {
			if cand.Coupon.ID == out.CouponID {
				p.accepted = append(p.accepted, cand.Coupon)
				break
			}
		}
	}

	summary := pricing.Compute(subtotal, res.Total, tax)
	applied := make([]domain.AppliedCoupon, 0, len(p.accepted))
	for _, out := range res.Accepted() {
		applied = append(applied, domain.AppliedCoupon{CouponID: out.CouponID, Code: out.Code, Type: out.Type, Discount: out.Discount})
	}
	p.txn = domain.Transaction{
		Kind:            domain.KindSale,
		Status:          domain.StatusPending,
		CustomerID:      customerID,
		Items:           items,
		Coupons:         applied,
		Subtotal:        summary.Subtotal,
		LineDiscount:    res.LineDiscount,
		CouponDiscount:  res.CouponDiscount,
		LoyaltyDiscount: res.LoyaltyDiscount,
		TotalDiscount:   summary.Discount,
		Tax:             summary.Tax,
		Total:           summary.Total,
		PointsUsed:      res.PointsUsed,
	}
	if p.customer != nil {
		p.txn.PointsEarned = s.cfg.Policy.PointsEarned(p.customer.Loyalty, summary.Total)
	}
	return p, nil
}
