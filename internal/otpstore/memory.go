package otpstore

import (
	"context"
	"sync"
	"time"

	"github.com/whitecard/whitecard-backend/internal/domain"
)

type memoryEntry struct {
	userID    string
	code      string
	brand     string
	verified  bool
	createdAt time.Time
	expiresAt time.Time
}

// MemoryStore is a single-process Store used by tests and local runs without
// redis. Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	ttls    TTLs
	now     func() time.Time
	records map[Kind]map[string]*memoryEntry
	codes   map[Kind]map[string]string
	spent   map[string]time.Time
}

func NewMemoryStore(ttls TTLs) *MemoryStore {
	return &MemoryStore{
		ttls: ttls.normalize(),
		now:  time.Now,
		records: map[Kind]map[string]*memoryEntry{
			KindRecovery:   {},
			KindRedemption: {},
		},
		codes: map[Kind]map[string]string{
			KindRecovery:   {},
			KindRedemption: {},
		},
		spent: map[string]time.Time{},
	}
}

func (s *MemoryStore) FindRecovery(_ context.Context, userID string) (*domain.RecoveryOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.liveLocked(KindRecovery, userID)
	if e == nil {
		return nil, ErrNotFound
	}
	return &domain.RecoveryOTP{UserID: e.userID, Code: e.code, OTPVerified: e.verified, CreatedAt: e.createdAt}, nil
}

func (s *MemoryStore) CreateRecovery(_ context.Context, userID, code string) (*domain.RecoveryOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.createLocked(KindRecovery, userID, code, "")
	if err != nil {
		return nil, err
	}
	return &domain.RecoveryOTP{UserID: e.userID, Code: e.code, CreatedAt: e.createdAt}, nil
}

func (s *MemoryStore) DeleteRecovery(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveLocked(KindRecovery, userID) == nil {
		return ErrNotFound
	}
	s.removeLocked(KindRecovery, userID)
	return nil
}

func (s *MemoryStore) ConsumeResetToken(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if until, ok := s.spent[tokenID]; ok && now.Before(until) {
		return ErrTokenUsed
	}
	for id, until := range s.spent {
		if !now.Before(until) {
			delete(s.spent, id)
		}
	}
	s.spent[tokenID] = now.Add(ttl)
	return nil
}

func (s *MemoryStore) FindRedemption(_ context.Context, userID string) (*domain.RedemptionOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.liveLocked(KindRedemption, userID)
	if e == nil {
		return nil, ErrNotFound
	}
	return &domain.RedemptionOTP{UserID: e.userID, Brand: e.brand, Code: e.code, OTPVerified: e.verified, CreatedAt: e.createdAt}, nil
}

func (s *MemoryStore) CreateRedemption(_ context.Context, userID, brand, code string) (*domain.RedemptionOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.createLocked(KindRedemption, userID, code, brand)
	if err != nil {
		return nil, err
	}
	return &domain.RedemptionOTP{UserID: e.userID, Brand: e.brand, Code: e.code, CreatedAt: e.createdAt}, nil
}

func (s *MemoryStore) MarkRedemptionVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.liveLocked(KindRedemption, userID)
	if e == nil {
		return ErrNotFound
	}
	e.verified = true
	return nil
}

func (s *MemoryStore) createLocked(kind Kind, userID, code, brand string) (*memoryEntry, error) {
	if existing := s.liveLocked(kind, userID); existing != nil {
		if blocksVerified(kind) || !existing.verified {
			return nil, ErrRecordExists
		}
		s.removeLocked(kind, userID)
	}
	if owner, ok := s.codes[kind][code]; ok && s.liveLocked(kind, owner) != nil {
		return nil, ErrCodeInUse
	}
	now := s.now().UTC()
	e := &memoryEntry{
		userID:    userID,
		code:      code,
		brand:     brand,
		createdAt: now,
		expiresAt: now.Add(s.ttls.forKind(kind)),
	}
	s.records[kind][userID] = e
	s.codes[kind][code] = userID
	return e, nil
}

func (s *MemoryStore) liveLocked(kind Kind, userID string) *memoryEntry {
	e, ok := s.records[kind][userID]
	if !ok {
		return nil
	}
	if !s.now().Before(e.expiresAt) {
		s.removeLocked(kind, userID)
		return nil
	}
	return e
}

func (s *MemoryStore) removeLocked(kind Kind, userID string) {
	e, ok := s.records[kind][userID]
	if !ok {
		return
	}
	delete(s.records[kind], userID)
	if s.codes[kind][e.code] == userID {
		delete(s.codes[kind], e.code)
	}
}
