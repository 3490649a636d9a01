package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps every record in process memory. It serves the memory
// store driver and the service tests. Mutations of one portfolio are
// serialized by a per-portfolio lock and applied to a private copy of that
// portfolio's rows, which replaces the shared state only on success.
type MemoryStore struct {
	mu sync.RWMutex

	users           map[string]User
	userIDsByEmail  map[string]string
	portfolios      map[string]Portfolio
	portfolioByUser map[string]string
	sections        map[string]Section
	components      map[string]Component
	refresh         map[string]refreshRecord
	revoked         map[string]time.Time

	locks *scopeLocks
	now   func() time.Time
}

type refreshRecord struct {
	userID    string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[string]User),
		userIDsByEmail:  make(map[string]string),
		portfolios:      make(map[string]Portfolio),
		portfolioByUser: make(map[string]string),
		sections:        make(map[string]Section),
		components:      make(map[string]Component),
		refresh:         make(map[string]refreshRecord),
		revoked:         make(map[string]time.Time),
		locks:           newScopeLocks(),
		now:             time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := s.userIDsByEmail[key]; ok {
		return ErrEmailTaken
	}
	s.users[user.ID] = user
	s.userIDsByEmail[key] = user.ID
	return nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userIDsByEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, userID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[tokenHash] = refreshRecord{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) ConsumeRefreshSession(_ context.Context, tokenHash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.refresh[tokenHash]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.refresh, tokenHash)
	if !s.now().Before(record.expiresAt) {
		return "", ErrNotFound
	}
	return record.userID, nil
}

func (s *MemoryStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, tokenHash)
	return nil
}

func (s *MemoryStore) RevokeAccessToken(_ context.Context, jti string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = exp
	return nil
}

func (s *MemoryStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *MemoryStore) GetPortfolio(_ context.Context, userID string) (Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.portfolioByUser[userID]
	if !ok {
		return Portfolio{}, ErrNotFound
	}
	return s.portfolios[id], nil
}

func (s *MemoryStore) EnsurePortfolio(_ context.Context, userID, portfolioID string, now time.Time) (Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.portfolioByUser[userID]; ok {
		return s.portfolios[id], nil
	}
	portfolio := Portfolio{ID: portfolioID, UserID: userID, CreatedAt: now, UpdatedAt: now}
	s.portfolios[portfolioID] = portfolio
	s.portfolioByUser[userID] = portfolioID
	return portfolio, nil
}

func (s *MemoryStore) ListSections(_ context.Context, userID, portfolioID string) ([]Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ownsPortfolio(userID, portfolioID) {
		return []Section{}, nil
	}
	return s.sectionsOf(portfolioID), nil
}

func (s *MemoryStore) GetSection(_ context.Context, userID, sectionID string) (Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	section, ok := s.sections[sectionID]
	if !ok || !s.ownsPortfolio(userID, section.PortfolioID) {
		return Section{}, ErrNotFound
	}
	return section, nil
}

func (s *MemoryStore) ListComponents(_ context.Context, userID, sectionID string) ([]Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	section, ok := s.sections[sectionID]
	if !ok || !s.ownsPortfolio(userID, section.PortfolioID) {
		return []Component{}, nil
	}
	return s.componentsOf(sectionID), nil
}

func (s *MemoryStore) GetComponent(_ context.Context, userID, componentID string) (Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.components[componentID]
	if !ok {
		return Component{}, ErrNotFound
	}
	section, ok := s.sections[item.SectionID]
	if !ok || !s.ownsPortfolio(userID, section.PortfolioID) {
		return Component{}, ErrNotFound
	}
	item.PortfolioID = section.PortfolioID
	return item, nil
}

// InPortfolio runs fn against a private copy of the portfolio's sections and
// components. The copy replaces the shared rows only when fn succeeds and
// every scope it touched is still contiguous.
func (s *MemoryStore) InPortfolio(ctx context.Context, userID, portfolioID string, fn func(Tx) error) error {
	unlock := s.locks.lock(portfolioID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	if !s.ownsPortfolio(userID, portfolioID) {
		s.mu.RUnlock()
		return ErrNotFound
	}
	tx := &memoryTx{
		portfolio:  s.portfolios[portfolioID],
		sections:   make(map[string]Section),
		components: make(map[string]Component),
	}
	for _, section := range s.sectionsOf(portfolioID) {
		tx.sections[section.ID] = section
		for _, item := range s.componentsOf(section.ID) {
			tx.components[item.ID] = item
		}
	}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.checkContiguous(); err != nil {
		return fmt.Errorf("memory store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, section := range s.sections {
		if section.PortfolioID != portfolioID {
			continue
		}
		for componentID, item := range s.components {
			if item.SectionID == id {
				delete(s.components, componentID)
			}
		}
		delete(s.sections, id)
	}
	for id, section := range tx.sections {
		s.sections[id] = section
	}
	for id, item := range tx.components {
		s.components[id] = item
	}
	s.portfolios[portfolioID] = tx.portfolio
	return nil
}

func (s *MemoryStore) ownsPortfolio(userID, portfolioID string) bool {
	portfolio, ok := s.portfolios[portfolioID]
	return ok && portfolio.UserID == userID
}

func (s *MemoryStore) sectionsOf(portfolioID string) []Section {
	return filterSections(s.sections, portfolioID)
}

func (s *MemoryStore) componentsOf(sectionID string) []Component {
	return filterComponents(s.components, sectionID)
}

func filterSections(all map[string]Section, portfolioID string) []Section {
	out := make([]Section, 0)
	for _, section := range all {
		if section.PortfolioID == portfolioID {
			out = append(out, section)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func filterComponents(all map[string]Component, sectionID string) []Component {
	out := make([]Component, 0)
	for _, item := range all {
		if item.SectionID == sectionID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

type scopeLocks struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	mu   sync.Mutex
	refs int
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{locks: make(map[string]*scopeLock)}
}

// lock blocks until key is free and returns its release func.
func (l *scopeLocks) lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &scopeLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
