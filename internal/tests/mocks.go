package tests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fleet/internal/domain"
	"fleet/internal/repository"
	"fleet/internal/service"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
	GetError    error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// copyTrip returns a deep copy so callers never share the verification session.
func copyTrip(t *domain.Trip) *domain.Trip {
	c := *t
	if t.Verification != nil {
		v := *t.Verification
		c.Verification = &v
	}
	return &c
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = copyTrip(trip)
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = copyTrip(trip)
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTrip(trip), nil
}

func (m *MockTripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		result = append(result, copyTrip(t))
	}
	return result, nil
}

func (m *MockTripRepository) GetByDriverID(ctx context.Context, driverID string) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Trip
	for _, t := range m.trips {
		if t.DriverID == driverID {
			result = append(result, copyTrip(t))
		}
	}
	return result, nil
}

func (m *MockTripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[trip.ID]; !ok {
		return repository.ErrNotFound
	}
	m.trips[trip.ID] = copyTrip(trip)
	return nil
}

// GetTrip returns the stored trip for assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil
	}
	return copyTrip(t)
}

// CountTrips returns the number of trips.
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

// ──────────────────────────────────────────────
// MOCK DOCUMENT REPOSITORY
// ──────────────────────────────────────────────

// MockDocumentRepository is a mock implementation of DocumentRepository.
type MockDocumentRepository struct {
	mu   sync.RWMutex
	docs []*domain.Document

	GetAllCallCount int32

	// Error injection
	GetAllError error
}

// NewMockDocumentRepository creates a new mock document repository.
func NewMockDocumentRepository(docs ...*domain.Document) *MockDocumentRepository {
	return &MockDocumentRepository{docs: docs}
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *doc
	m.docs = append(m.docs, &c)
	return nil
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs {
		if d.ID == id {
			c := *d
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDocumentRepository) GetAll(ctx context.Context) ([]*domain.Document, error) {
	atomic.AddInt32(&m.GetAllCallCount, 1)
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		c := *d
		result = append(result, &c)
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK EXPENSE REPOSITORY
// ──────────────────────────────────────────────

// MockExpenseRepository is a mock implementation of ExpenseRepository.
type MockExpenseRepository struct {
	mu       sync.RWMutex
	expenses []*domain.Expense

	UpdateCallCount int32

	// Error injection
	CreateError error
	// BeforeUpdate runs inside UpdateStatus before the status guard, to
	// simulate a competing decision.
	BeforeUpdate func(id string)
}

// NewMockExpenseRepository creates a new mock expense repository.
func NewMockExpenseRepository() *MockExpenseRepository {
	return &MockExpenseRepository{}
}

func (m *MockExpenseRepository) Create(ctx context.Context, expense *domain.Expense) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *expense
	m.expenses = append(m.expenses, &c)
	return nil
}

func (m *MockExpenseRepository) GetByID(ctx context.Context, id string) (*domain.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.expenses {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockExpenseRepository) List(ctx context.Context, filter repository.ExpenseFilter) ([]*domain.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Expense, 0, len(m.expenses))
	for i := len(m.expenses) - 1; i >= 0; i-- {
		e := m.expenses[i]
		if filter.DriverID != "" && e.DriverID != filter.DriverID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		c := *e
		result = append(result, &c)
	}
	return result, nil
}

func (m *MockExpenseRepository) UpdateStatus(ctx context.Context, expense *domain.Expense, from domain.ExpenseStatus) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.BeforeUpdate != nil {
		m.BeforeUpdate(expense.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.expenses {
		if e.ID == expense.ID && e.Status == from {
			e.Status = expense.Status
			e.DecidedBy = expense.DecidedBy
			e.DecidedAt = expense.DecidedAt
			return nil
		}
	}
	return repository.ErrNotFound
}

// SetStatus overwrites a stored expense's status.
func (m *MockExpenseRepository) SetStatus(id string, status domain.ExpenseStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.expenses {
		if e.ID == id {
			e.Status = status
		}
	}
}

// ──────────────────────────────────────────────
// MOCK ACCOUNT DIRECTORY
// ──────────────────────────────────────────────

// MockAccountRepository resolves accounts, driver vehicles and shipments from maps.
type MockAccountRepository struct {
	mu        sync.RWMutex
	accounts  map[string]string // role|lower(name) -> id
	vehicles  map[string]string // driver -> vehicle
	shipments map[string]string // supplier|shipment -> vehicle

	ResolveError error
}

// NewMockAccountRepository creates a new mock account directory.
func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts:  make(map[string]string),
		vehicles:  make(map[string]string),
		shipments: make(map[string]string),
	}
}

// AddAccount registers an account.
func (m *MockAccountRepository) AddAccount(role domain.Role, name, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[string(role)+"|"+strings.ToLower(name)] = id
}

// AssignVehicle assigns a vehicle to a driver.
func (m *MockAccountRepository) AssignVehicle(driverID, vehicleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[driverID] = vehicleID
}

// AddShipment records the vehicle carrying a supplier's shipment.
func (m *MockAccountRepository) AddShipment(supplierID, shipmentID, vehicleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shipments[supplierID+"|"+shipmentID] = vehicleID
}

func (m *MockAccountRepository) ResolveAccount(ctx context.Context, role domain.Role, name string) (string, error) {
	if m.ResolveError != nil {
		return "", m.ResolveError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.accounts[string(role)+"|"+strings.ToLower(name)]
	if !ok {
		return "", repository.ErrNotFound
	}
	return id, nil
}

func (m *MockAccountRepository) VehicleForDriver(ctx context.Context, driverID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[driverID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (m *MockAccountRepository) VehicleForShipment(ctx context.Context, supplierID, shipmentID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.shipments[supplierID+"|"+shipmentID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

// ──────────────────────────────────────────────
// MOCK SESSION STORE
// ──────────────────────────────────────────────

// MockSessionStore is a mock implementation of SessionStore.
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session

	DeleteCallCount int32

	// Error injection
	GetError error
}

// NewMockSessionStore creates a new mock session store.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]domain.Session)}
}

func (m *MockSessionStore) Save(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *MockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockSessionStore) Delete(ctx context.Context, sessionID string) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// CountSessions returns the number of live sessions.
func (m *MockSessionStore) CountSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ──────────────────────────────────────────────
// MOCK OTP STORE
// ──────────────────────────────────────────────

// MockOTPStore is a mock implementation of OTPStore. TTLs are ignored.
type MockOTPStore struct {
	mu       sync.Mutex
	codes    map[string]string
	failures map[string]int

	RevokeCallCount int32
}

// NewMockOTPStore creates a new mock OTP store.
func NewMockOTPStore() *MockOTPStore {
	return &MockOTPStore{
		codes:    make(map[string]string),
		failures: make(map[string]int),
	}
}

func (m *MockOTPStore) Issue(ctx context.Context, tripID, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[tripID] = code
	delete(m.failures, tripID)
	return nil
}

func (m *MockOTPStore) Get(ctx context.Context, tripID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[tripID], nil
}

func (m *MockOTPStore) RecordFailure(ctx context.Context, tripID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[tripID]++
	return m.failures[tripID], nil
}

func (m *MockOTPStore) Revoke(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.RevokeCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, tripID)
	delete(m.failures, tripID)
	return nil
}

// HasCode reports whether a live code exists for the trip.
func (m *MockOTPStore) HasCode(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.codes[tripID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]mockLock
	seq   int

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

type mockLock struct {
	token  string
	expiry time.Time
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]mockLock),
	}
}

func (m *MockLockStore) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return "", false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:trip:" + tripID
	if held, exists := m.locks[key]; exists {
		if time.Now().Before(held.expiry) {
			return "", false, nil // Lock still held.
		}
	}

	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.locks[key] = mockLock{token: token, expiry: time.Now().Add(ttl)}
	return token, true, nil
}

func (m *MockLockStore) ReleaseTripLock(ctx context.Context, tripID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "lock:trip:" + tripID
	if held, ok := m.locks[key]; ok && held.token == token {
		delete(m.locks, key)
	}
	return nil
}

// IsLocked checks if a trip is locked (for test assertions).
func (m *MockLockStore) IsLocked(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, exists := m.locks["lock:trip:"+tripID]
	return exists && time.Now().Before(held.expiry)
}

// ──────────────────────────────────────────────
// MOCK PROXIMITY CHECKER
// ──────────────────────────────────────────────

// MockProximityChecker decides geofence checks from a fixed answer.
type MockProximityChecker struct {
	mu   sync.Mutex
	bays map[string]domain.BayLocation

	// Within is the answer returned by WithinBay.
	Within bool

	// Block makes WithinBay wait until its context is done.
	Block bool

	// FailTimes makes the first N calls fail with ErrMockTimeout.
	FailTimes int32

	// Started is closed, if set, when a WithinBay call begins.
	Started chan struct{}

	CheckCallCount int32
}

// NewMockProximityChecker creates a new mock proximity checker.
func NewMockProximityChecker() *MockProximityChecker {
	return &MockProximityChecker{bays: make(map[string]domain.BayLocation)}
}

func (m *MockProximityChecker) WithinBay(ctx context.Context, bayID string, pos domain.Position, radiusMeters float64) (bool, error) {
	n := atomic.AddInt32(&m.CheckCallCount, 1)

	m.mu.Lock()
	_, known := m.bays[bayID]
	started := m.Started
	m.Started = nil
	m.mu.Unlock()

	if started != nil {
		close(started)
	}
	if !known {
		return false, repository.ErrNotFound
	}
	if m.Block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if n <= atomic.LoadInt32(&m.FailTimes) {
		return false, ErrMockTimeout
	}
	return m.Within, nil
}

func (m *MockProximityChecker) SetBayLocation(ctx context.Context, loc domain.BayLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bays[loc.BayID] = loc
	return nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published notifications.
type MockPublisher struct {
	mu        sync.Mutex
	published []service.Notification

	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, n service.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, n)
	return m.PublishError
}

// Types returns the published notification types in order.
func (m *MockPublisher) Types() []service.NotificationType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]service.NotificationType, 0, len(m.published))
	for _, n := range m.published {
		types = append(types, n.Type)
	}
	return types
}

// Count returns how many notifications of typ were published.
func (m *MockPublisher) Count(typ service.NotificationType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.published {
		if p.Type == typ {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// HELPERS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)

// discardLogger returns a logger that drops all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
