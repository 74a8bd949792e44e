package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultFailureRate = 0.1
	DefaultLimit       = 20
)

var (
	merchants = []string{
		"Shopee", "Grab", "Zus Coffee", "Spotify", "Netflix",
		"Lotus", "Apple", "FoodPanda", "Petronas", "Watsons",
	}
	categories = []string{
		"Shopping", "Groceries", "Entertainment", "Transportation", "Subscriptions",
		"Food & Dining", "Health & Wellness", "Bills & Utilities", "Gas & Fuel", "Travel",
	}
	descriptions = map[string][]string{
		"Shopping":          {"Online Purchase", "In-store Purchase", "Mobile Order"},
		"Groceries":         {"Grocery Shopping", "Weekly Groceries", "Fresh Produce"},
		"Entertainment":     {"Monthly Subscription", "Streaming Service", "Digital Content"},
		"Transportation":    {"Ride Share", "Taxi Service", "Transit Pass"},
		"Food & Dining":     {"Restaurant Order", "Food Delivery", "Coffee & Snacks"},
		"Bills & Utilities": {"Monthly Service", "Utility Payment", "Subscription Fee"},
		"Gas & Fuel":        {"Gas Station", "Fuel Purchase", "Vehicle Service"},
		"Travel":            {"Travel Booking", "Hotel Stay", "Flight Ticket"},
	}
	injected = []APIError{
		{Status: http.StatusTooManyRequests, Message: "Too many requests, please try again later", Code: CodeRateLimited},
		{Status: http.StatusInternalServerError, Message: "Internal server error, please try again later", Code: CodeInternal},
		{Status: http.StatusServiceUnavailable, Message: "Service unavailable, please try again later", Code: CodeServiceUnavailable},
	}
)

// Mock generates random account data with simulated latency and a
// configurable share of failed requests.
type Mock struct {
	failureRate float64
	delayScale  float64
	now         func() time.Time

	mu    sync.Mutex
	rng   *rand.Rand
	known map[string]Transaction
}

// MockOption configures a Mock.
type MockOption func(*Mock)

// WithFailureRate sets the probability in [0,1] that a request fails.
func WithFailureRate(rate float64) MockOption {
	return func(m *Mock) { m.failureRate = rate }
}

// WithDelayScale multiplies every simulated latency; 0 disables delays.
func WithDelayScale(scale float64) MockOption {
	return func(m *Mock) { m.delayScale = scale }
}

// WithSeed makes the generated data reproducible.
func WithSeed(seed uint64) MockOption {
	return func(m *Mock) { m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithClock overrides the time source used for transaction dates.
func WithClock(now func() time.Time) MockOption {
	return func(m *Mock) { m.now = now }
}

var _ Provider = (*Mock)(nil)

func NewMock(opts ...MockOption) *Mock {
	m := &Mock{
		failureRate: DefaultFailureRate,
		delayScale:  1,
		now:         time.Now,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		known:       make(map[string]Transaction),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mock) Transactions(ctx context.Context, q Query) (TransactionPage, error) {
	if err := m.simulate(ctx, 500*time.Millisecond, 1500*time.Millisecond); err != nil {
		return TransactionPage{}, classify(err, "Failed to fetch transactions")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	txns := m.generate(limit)
	hasMore := len(txns) >= limit

	txns = filterRange(txns, q.Start, q.End)
	page := TransactionPage{Transactions: txns, HasMore: hasMore}
	if hasMore {
		page.NextCursor = m.cursor()
	}
	return page, nil
}

func (m *Mock) Balance(ctx context.Context) (Balance, error) {
	if err := m.simulate(ctx, 300*time.Millisecond, 800*time.Millisecond); err != nil {
		return Balance{}, classify(err, "Failed to fetch balance")
	}
	return Balance{Available: 245932, Pending: 15000, Currency: "USD"}, nil
}

func (m *Mock) Refresh(ctx context.Context) (TransactionPage, error) {
	if err := m.simulate(ctx, 500*time.Millisecond, 1000*time.Millisecond); err != nil {
		return TransactionPage{}, classify(err, "Failed to refresh transactions")
	}
	return TransactionPage{
		Transactions: m.generate(DefaultLimit),
		HasMore:      true,
		NextCursor:   m.cursor(),
	}, nil
}

// Transaction looks up a transaction previously returned by this mock.
func (m *Mock) Transaction(ctx context.Context, id string) (Transaction, error) {
	if err := m.simulate(ctx, 300*time.Millisecond, 800*time.Millisecond); err != nil {
		return Transaction{}, classify(err, "Failed to load transaction details")
	}
	m.mu.Lock()
	t, ok := m.known[id]
	m.mu.Unlock()
	if !ok {
		return Transaction{}, &APIError{Status: http.StatusNotFound, Message: "Transaction not found", Code: CodeNotFound}
	}
	return t, nil
}

// simulate waits a random latency in [lo,hi) and then maybe fails.
func (m *Mock) simulate(ctx context.Context, lo, hi time.Duration) error {
	m.mu.Lock()
	d := time.Duration(float64(lo+time.Duration(m.rng.Int64N(int64(hi-lo)))) * m.delayScale)
	fail := m.rng.Float64() < m.failureRate
	pick := injected[m.rng.IntN(len(injected))]
	m.mu.Unlock()

	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if fail {
		return &pick
	}
	return nil
}

// classify passes APIErrors and context errors through and turns anything
// else into a 500 with the given message.
func classify(err error, msg string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &APIError{Status: http.StatusInternalServerError, Message: msg}
}

func (m *Mock) cursor() string {
	return fmt.Sprintf("cursor_%d", m.now().UnixMilli())
}

func (m *Mock) generate(n int) []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	txns := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		category := categories[m.rng.IntN(len(categories))]
		merchant := merchants[m.rng.IntN(len(merchants))]
		descList, ok := descriptions[category]
		if !ok {
			descList = []string{"Purchase"}
		}
		desc := descList[m.rng.IntN(len(descList))]

		kind := Debit
		if m.rng.Float64() >= 0.8 {
			kind = Credit
		}

		t := Transaction{
			ID:          "txn_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9],
			Amount:      m.amountFor(category),
			Date:        now.Add(-time.Duration(m.rng.IntN(30)) * 24 * time.Hour),
			Description: desc + " at " + merchant,
			Kind:        kind,
			Category:    category,
			Merchant:    merchant,
		}
		m.known[t.ID] = t
		txns = append(txns, t)
	}

	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date.After(txns[j].Date) })
	return txns
}

// amountFor returns a plausible amount in cents for category.
func (m *Mock) amountFor(category string) int64 {
	lo, hi := int64(5), int64(200)
	switch category {
	case "Groceries":
		lo, hi = 20, 200
	case "Entertainment", "Subscriptions":
		lo, hi = 5, 50
	case "Transportation":
		lo, hi = 10, 100
	case "Travel":
		lo, hi = 100, 1000
	}
	return lo*100 + m.rng.Int64N((hi-lo)*100+1)
}

func filterRange(txns []Transaction, start, end time.Time) []Transaction {
	if start.IsZero() && end.IsZero() {
		return txns
	}
	out := txns[:0]
	for _, t := range txns {
		if !start.IsZero() && t.Date.Before(start) {
			continue
		}
		if !end.IsZero() && t.Date.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out
}
