package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lingua-api/internal/models"
	"github.com/noah-isme/lingua-api/internal/repository"
	"github.com/noah-isme/lingua-api/pkg/payments"
)

const (
	cohortItalian = "8d3f6c1e-2b4a-4f7d-9c15-6e0a7b2d4f31"
	cohortGerman  = "b27e9a40-5d13-4c8e-a6f2-13c94d7e0b58"
	cohortSpare   = "e5c0d2b9-7a61-4f3e-8b24-9d1f6a3c7e02"
)

// ledgerStore is an in-memory stand-in for the cohort, hold, enrollment,
// purchase and credit tables.
type ledgerStore struct {
	mu          sync.Mutex
	cohorts     map[string]*models.Cohort
	holds       map[string]*models.Hold
	enrollments []models.Enrollment
	purchases   map[string]*models.Purchase
	credits     []models.CreditEntry

	reserveErr    error
	attachErr     error
	deleteErr     error
	purchaseErr   error
	enrollmentErr error
}

func newLedgerStore() *ledgerStore {
	return &ledgerStore{
		cohorts:   map[string]*models.Cohort{},
		holds:     map[string]*models.Hold{},
		purchases: map[string]*models.Purchase{},
	}
}

func (s *ledgerStore) addCohort(id string, capacity int, status models.CohortStatus, price string) *models.Cohort {
	c := &models.Cohort{ID: id, Label: "Italian A1 evening", Language: "Italian", Level: "A1", Capacity: capacity, Status: status}
	if price != "" {
		c.PriceID = &price
	}
	s.cohorts[id] = c
	return c
}

func (s *ledgerStore) addHold(cohortID string, expiresAt time.Time, sessionID string) *models.Hold {
	h := &models.Hold{ID: uuid.NewString(), CohortID: cohortID, ExpiresAt: expiresAt}
	if sessionID != "" {
		h.SessionID = &sessionID
	}
	s.holds[h.ID] = h
	return h
}

func (s *ledgerStore) holdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holds)
}

func (s *ledgerStore) Reserve(ctx context.Context, params repository.ReserveParams, admit repository.AdmitFunc) (*models.Hold, *models.CohortOccupancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserveErr != nil {
		return nil, nil, s.reserveErr
	}
	cohort, ok := s.cohorts[params.CohortID]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	occ := models.CohortOccupancy{Cohort: *cohort}
	for _, e := range s.enrollments {
		if e.CohortID == params.CohortID {
			occ.Enrolled++
		}
	}
	for _, h := range s.holds {
		if h.CohortID == params.CohortID && h.ActiveAt(params.Now) {
			occ.ActiveHolds++
		}
	}
	if err := admit(occ); err != nil {
		return nil, &occ, err
	}
	h := &models.Hold{ID: uuid.NewString(), CohortID: params.CohortID, Email: params.Email, ExpiresAt: params.Now.Add(params.TTL), CreatedAt: params.Now}
	s.holds[h.ID] = h
	copied := *h
	return &copied, &occ, nil
}

func (s *ledgerStore) AttachSession(ctx context.Context, holdID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachErr != nil {
		return s.attachErr
	}
	h, ok := s.holds[holdID]
	if !ok {
		return errors.New("hold not found")
	}
	h.SessionID = &sessionID
	return nil
}

func (s *ledgerStore) DeleteByID(ctx context.Context, holdID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	if _, ok := s.holds[holdID]; !ok {
		return 0, nil
	}
	delete(s.holds, holdID)
	return 1, nil
}

func (s *ledgerStore) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	var n int64
	for id, h := range s.holds {
		if h.SessionID != nil && *h.SessionID == sessionID {
			delete(s.holds, id)
			n++
		}
	}
	return n, nil
}

func (s *ledgerStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	var n int64
	for id, h := range s.holds {
		if !h.ActiveAt(now) {
			delete(s.holds, id)
			n++
		}
	}
	return n, nil
}

func (s *ledgerStore) Upsert(ctx context.Context, p *models.Purchase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.purchaseErr != nil {
		return false, s.purchaseErr
	}
	if existing, ok := s.purchases[p.SessionID]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		copied := *p
		s.purchases[p.SessionID] = &copied
		return false, nil
	}
	copied := *p
	s.purchases[p.SessionID] = &copied
	return true, nil
}

func (s *ledgerStore) FindBySession(ctx context.Context, sessionID string) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[sessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (s *ledgerStore) CreateIfAbsent(ctx context.Context, e *models.Enrollment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enrollmentErr != nil {
		return false, s.enrollmentErr
	}
	for _, existing := range s.enrollments {
		if existing.CohortID == e.CohortID && existing.Email == e.Email {
			return false, nil
		}
	}
	s.enrollments = append(s.enrollments, *e)
	return true, nil
}

func (s *ledgerStore) GrantOnce(ctx context.Context, entry *models.CreditEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.credits {
		if existing.Source == entry.Source {
			return false, nil
		}
	}
	s.credits = append(s.credits, *entry)
	return true, nil
}

func (s *ledgerStore) Insert(ctx context.Context, entry *models.CreditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = append(s.credits, *entry)
	return nil
}

func (s *ledgerStore) balanceLocked(email string) int {
	total := 0
	for _, e := range s.credits {
		if e.Email == email {
			total += e.DeltaCredits
		}
	}
	return total
}

func (s *ledgerStore) Balance(ctx context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(email), nil
}

func (s *ledgerStore) Spend(ctx context.Context, entry *models.CreditEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance := s.balanceLocked(entry.Email)
	if balance+entry.DeltaCredits < 0 {
		return balance, repository.ErrInsufficientCredits
	}
	s.credits = append(s.credits, *entry)
	return balance + entry.DeltaCredits, nil
}

type gatewayStub struct {
	mu       sync.Mutex
	requests []payments.SessionRequest
	err      error
	next     int
}

func (g *gatewayStub) CreateCheckoutSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	g.next++
	id := fmt.Sprintf("cs_test_%d", g.next)
	return &payments.Session{ID: id, URL: "https://checkout.example/" + id}, nil
}

type catalogSpy struct {
	mu    sync.Mutex
	calls int
}

func (c *catalogSpy) InvalidateOpenCohorts(ctx context.Context) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}
