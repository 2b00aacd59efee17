package ordersync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/domain/reconciliation"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// ---------------------------------------------------------------------------
// Marketplace
// ---------------------------------------------------------------------------

// fakeMarketplace serves an in-memory order book with the remote search semantics
type fakeMarketplace struct {
	mu        sync.Mutex
	orders    []integration.RawOrder
	shipments map[string]integration.RawShipment

	// token, when set, must match the credential of every call
	token       string
	searchErr   func(q integration.OrderSearchQuery) error
	detailErr   map[string]error
	onSearch    func(ctx context.Context)
	searchCalls int
	countCalls  int
	detailCalls int
	shipCalls   int
}

func newFakeMarketplace(orders ...integration.RawOrder) *fakeMarketplace {
	return &fakeMarketplace{
		orders:    orders,
		shipments: make(map[string]integration.RawShipment),
		detailErr: make(map[string]error),
	}
}

func (f *fakeMarketplace) checkToken(cred integration.Credential) error {
	if f.token != "" && cred.AccessToken != f.token {
		return fmt.Errorf("%w: status 401", integration.ErrPlatformAuthFailed)
	}
	return nil
}

func (f *fakeMarketplace) SearchOrders(ctx context.Context, cred integration.Credential, q integration.OrderSearchQuery) (*integration.OrderSearchPage, error) {
	f.mu.Lock()
	f.searchCalls++
	if q.Limit == 1 && q.Offset == 0 {
		f.countCalls++
	}
	onSearch := f.onSearch
	f.mu.Unlock()

	if onSearch != nil {
		onSearch(ctx)
	}
	if err := f.checkToken(cred); err != nil {
		return nil, err
	}
	if f.searchErr != nil {
		if err := f.searchErr(q); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []integration.RawOrder
	for _, o := range f.orders {
		if !o.DateCreated.Before(q.From) && o.DateCreated.Before(q.To) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].DateCreated.Equal(matched[j].DateCreated) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].DateCreated.After(matched[j].DateCreated)
	})

	page := &integration.OrderSearchPage{Total: len(matched), Offset: q.Offset, Limit: q.Limit}
	if q.Offset < len(matched) {
		end := q.Offset + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Results = append(page.Results, matched[q.Offset:end]...)
	}
	return page, nil
}

func (f *fakeMarketplace) GetOrder(_ context.Context, cred integration.Credential, orderID string) (*integration.RawOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++

	if err := f.checkToken(cred); err != nil {
		return nil, err
	}
	if err, ok := f.detailErr[orderID]; ok {
		return nil, err
	}
	for _, o := range f.orders {
		if o.ID == orderID {
			found := o
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", integration.ErrOrderNotFound, orderID)
}

func (f *fakeMarketplace) GetShipment(_ context.Context, cred integration.Credential, shipmentID string) (*integration.RawShipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shipCalls++

	if err := f.checkToken(cred); err != nil {
		return nil, err
	}
	s, ok := f.shipments[shipmentID]
	if !ok {
		return nil, fmt.Errorf("%w: shipment %s", integration.ErrPlatformRequestFailed, shipmentID)
	}
	return &s, nil
}

func testOrder(id string, created time.Time, total string) integration.RawOrder {
	amount := decimal.RequireFromString(total)
	return integration.RawOrder{
		ID:          id,
		Status:      "paid",
		DateCreated: created,
		Currency:    "BRL",
		TotalAmount: reconciliation.NewAmount(amount),
		PaidAmount:  reconciliation.NewAmount(amount),
		Items: []integration.RawOrderItem{{
			ItemID:        "MLB" + id,
			Title:         "Item " + id,
			SKU:           "SKU-" + id,
			Quantity:      1,
			UnitPrice:     reconciliation.NewAmount(amount),
			SaleFee:       reconciliation.NewAmount(decimal.RequireFromString("10")),
			ListingTypeID: "gold_special",
		}},
	}
}

// hourlyOrders returns n orders created one hour apart, newest first, ids "1".."n"
func hourlyOrders(n int) []integration.RawOrder {
	out := make([]integration.RawOrder, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, testOrder(fmt.Sprint(i), testNow.Add(-time.Duration(i)*time.Hour), "100"))
	}
	return out
}

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

// memOrderRepo is a keyed in-memory store
type memOrderRepo struct {
	mu      sync.Mutex
	records map[string]*integration.ReconciledOrderRecord
	failOn  map[string]error
	upserts int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		records: make(map[string]*integration.ReconciledOrderRecord),
		failOn:  make(map[string]error),
	}
}

func (r *memOrderRepo) Upsert(_ context.Context, rec *integration.ReconciledOrderRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if err, ok := r.failOn[rec.OrderID]; ok {
		return err
	}
	copied := *rec
	r.records[rec.Key()] = &copied
	return nil
}

func (r *memOrderRepo) CountByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (r *memOrderRepo) OldestOrderDate(_ context.Context, accountID uuid.UUID) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *time.Time
	for _, rec := range r.records {
		if rec.AccountID != accountID || rec.OrderCreatedAt.IsZero() {
			continue
		}
		if oldest == nil || rec.OrderCreatedAt.Before(*oldest) {
			t := rec.OrderCreatedAt
			oldest = &t
		}
	}
	return oldest, nil
}

func (r *memOrderRepo) FindByOrderID(_ context.Context, accountID uuid.UUID, orderID string) (*integration.ReconciledOrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.AccountID == accountID && rec.OrderID == orderID {
			return rec, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// MockAccountRepository is a mock implementation of integration.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) ListEnabled(ctx context.Context) ([]integration.ConnectedAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ConnectedAccount), args.Error(1)
}

func (m *MockAccountRepository) UpdateCredentials(ctx context.Context, accountID uuid.UUID, cred integration.Credential) error {
	args := m.Called(ctx, accountID, cred)
	return args.Error(0)
}

// MockCredentialRefresher is a mock implementation of integration.CredentialRefresher
type MockCredentialRefresher struct {
	mock.Mock
}

func (m *MockCredentialRefresher) Refresh(ctx context.Context, account integration.ConnectedAccount) (*integration.Credential, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Credential), args.Error(1)
}

// staticCosts maps SKU to unit cost
type staticCosts map[string]decimal.Decimal

func (c staticCosts) UnitCost(_ context.Context, _ uuid.UUID, sku string) (decimal.Decimal, bool, error) {
	v, ok := c[sku]
	return v, ok, nil
}

// ---------------------------------------------------------------------------
// Run coordination
// ---------------------------------------------------------------------------

type recordingSink struct {
	mu     sync.Mutex
	events []integration.SyncProgressEvent
	err    error
}

func (s *recordingSink) Emit(_ context.Context, ev integration.SyncProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) snapshot() []integration.SyncProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]integration.SyncProgressEvent(nil), s.events...)
}

func (s *recordingSink) ofType(typ integration.ProgressEventType) []integration.SyncProgressEvent {
	var out []integration.SyncProgressEvent
	for _, ev := range s.snapshot() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fakeLease struct {
	mu       sync.Mutex
	held     map[uuid.UUID]bool
	err      error
	released []uuid.UUID
}

func newFakeLease() *fakeLease {
	return &fakeLease{held: make(map[uuid.UUID]bool)}
}

func (l *fakeLease) Acquire(_ context.Context, accountID uuid.UUID, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held[accountID] {
		return false, nil
	}
	l.held[accountID] = true
	return true, nil
}

func (l *fakeLease) Release(_ context.Context, accountID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, accountID)
	l.released = append(l.released, accountID)
	return nil
}

type memArchive struct {
	mu       sync.Mutex
	payloads map[string][]byte
}

func (a *memArchive) Archive(_ context.Context, _ uuid.UUID, orderID string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.payloads == nil {
		a.payloads = make(map[string][]byte)
	}
	a.payloads[orderID] = payload
	return nil
}

func testAccount(nickname string) integration.ConnectedAccount {
	return integration.ConnectedAccount{
		ID:             uuid.New(),
		SellerID:       "seller-" + nickname,
		Nickname:       nickname,
		AccessToken:    "token-" + nickname,
		RefreshToken:   "refresh-" + nickname,
		TokenExpiresAt: testNow.Add(6 * time.Hour),
		Enabled:        true,
	}
}
