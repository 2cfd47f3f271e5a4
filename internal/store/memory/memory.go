// Package memory is the in-process store used for development, demos and
// tests. Every resource has its own lock; a commit holds only the locks of
// the rows it touches.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/noah-isme/grocery-pos/internal/audit"
	"github.com/noah-isme/grocery-pos/internal/coupon"
	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/events"
	"github.com/noah-isme/grocery-pos/internal/lock"
	"github.com/noah-isme/grocery-pos/internal/store"
)

type Store struct {
	locks *lock.Keyed

	mu           sync.RWMutex
	products     map[string]domain.Product
	customers    map[string]domain.Customer
	coupons      map[string]domain.Coupon
	couponCodes  map[string]string
	redemptions  map[string]map[string]int
	transactions map[string]domain.Transaction
	events       []events.Event
	auditLogs    []audit.Entry
}

func New() *Store {
	return &Store{
		locks:        lock.NewKeyed(),
		products:     make(map[string]domain.Product),
		customers:    make(map[string]domain.Customer),
		coupons:      make(map[string]domain.Coupon),
		couponCodes:  make(map[string]string),
		redemptions:  make(map[string]map[string]int),
		transactions: make(map[string]domain.Transaction),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// PutProduct inserts or replaces a catalog entry.
func (s *Store) PutProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

// PutCustomer inserts or replaces a customer.
func (s *Store) PutCustomer(_ context.Context, c domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.NotFound("product", id)
	}
	return p, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, domain.NotFound("customer", id)
	}
	return c, nil
}

// CreateCoupon stores a new coupon; codes are unique case-insensitively.
func (s *Store) CreateCoupon(_ context.Context, c domain.Coupon) (domain.Coupon, error) {
	c.Code = coupon.NormalizeCode(c.Code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.couponCodes[c.Code]; taken {
		return domain.Coupon{}, &domain.ConflictError{Resource: "coupon", Key: c.Code}
	}
	c = cloneCoupon(c)
	s.coupons[c.ID] = c
	s.couponCodes[c.Code] = c.ID
	return cloneCoupon(c), nil
}

func (s *Store) FindCouponByCode(_ context.Context, code string) (domain.Coupon, error) {
	code = coupon.NormalizeCode(code)
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.couponCodes[code]
	if !ok {
		return domain.Coupon{}, domain.NotFound("coupon", code)
	}
	return cloneCoupon(s.coupons[id]), nil
}

// CouponUsage counts the customer's redemptions of a coupon.
func (s *Store) CouponUsage(_ context.Context, couponID, customerID string) (int, error) {
	if customerID == "" {
		return 0, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.redemptions[couponID][customerID], nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return domain.Transaction{}, domain.NotFound("transaction", id)
	}
	return cloneTransaction(t), nil
}

// UpdateProduct runs fn against the product while holding its lock.
func (s *Store) UpdateProduct(ctx context.Context, id string, fn func(*domain.Product) error) (domain.Product, error) {
	release, err := s.locks.Acquire(ctx, "product:"+id)
	if err != nil {
		return domain.Product{}, err
	}
	defer release()

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if err := fn(&p); err != nil {
		return domain.Product{}, err
	}
	s.mu.Lock()
	s.products[id] = p
	s.mu.Unlock()
	return p, nil
}

// Commit applies c atomically. Mutators run against private copies; nothing is
// written unless every one of them succeeds.
func (s *Store) Commit(ctx context.Context, c store.Commit) error {
	release, err := s.locks.Acquire(ctx, c.Keys()...)
	if err != nil {
		return err
	}
	defer release()

	products := make(map[string]domain.Product, len(c.Stock))
	for _, m := range c.Stock {
		p, ok := products[m.ProductID]
		if !ok {
			if p, err = s.GetProduct(ctx, m.ProductID); err != nil {
				return err
			}
		}
		if err := m.Apply(&p); err != nil {
			return err
		}
		products[m.ProductID] = p
	}

	customerID := c.CustomerID()
	coupons := make(map[string]domain.Coupon, len(c.Coupons))
	for _, m := range c.Coupons {
		s.mu.RLock()
		cp, ok := s.coupons[m.CouponID]
		uses := 0
		if customerID != "" {
			uses = s.redemptions[m.CouponID][customerID]
		}
		s.mu.RUnlock()
		if !ok {
			return domain.NotFound("coupon", m.CouponID)
		}
		cp = cloneCoupon(cp)
		if err := m.Apply(&cp, uses); err != nil {
			return err
		}
		coupons[m.CouponID] = cp
	}

	var customer *domain.Customer
	if c.Customer != nil {
		cust, err := s.GetCustomer(ctx, c.Customer.CustomerID)
		if err != nil {
			return err
		}
		if err := c.Customer.Apply(&cust); err != nil {
			return err
		}
		customer = &cust
	}

	var transitioned *domain.Transaction
	if c.Transition != nil {
		t, err := s.GetTransaction(ctx, c.Transition.TransactionID)
		if err != nil {
			return err
		}
		if err := c.Transition.Apply(&t); err != nil {
			return err
		}
		transitioned = &t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Insert != nil {
		if _, exists := s.transactions[c.Insert.ID]; exists {
			return &domain.ConflictError{Resource: "transaction", Key: c.Insert.ID}
		}
		s.transactions[c.Insert.ID] = cloneTransaction(*c.Insert)
		if customerID != "" {
			for id := range coupons {
				if s.redemptions[id] == nil {
					s.redemptions[id] = make(map[string]int)
				}
				s.redemptions[id][customerID]++
			}
		}
	}
	for id, p := range products {
		s.products[id] = p
	}
	for id, cp := range coupons {
		s.coupons[id] = cp
	}
	if customer != nil {
		s.customers[customer.ID] = *customer
	}
	if transitioned != nil {
		s.transactions[transitioned.ID] = *transitioned
	}
	return nil
}

func (s *Store) InsertEvent(_ context.Context, ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns the persisted domain events in emission order.
func (s *Store) Events() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

func (s *Store) InsertAuditLog(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, e)
	return nil
}

// AuditLogs returns the recorded audit entries.
func (s *Store) AuditLogs() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.auditLogs)
}

func cloneCoupon(c domain.Coupon) domain.Coupon {
	c.ProductIDs = slices.Clone(c.ProductIDs)
	c.CategoryIDs = slices.Clone(c.CategoryIDs)
	c.ExcludedProductIDs = slices.Clone(c.ExcludedProductIDs)
	c.ExcludedCategoryIDs = slices.Clone(c.ExcludedCategoryIDs)
	c.ValidDays = slices.Clone(c.ValidDays)
	return c
}

func cloneTransaction(t domain.Transaction) domain.Transaction {
	t.Items = slices.Clone(t.Items)
	t.Payments = slices.Clone(t.Payments)
	t.Coupons = slices.Clone(t.Coupons)
	return t
}
