// Package memory is an in-process ledger store with the same locking
// guarantees as the postgres repositories. It backs STORAGE_DRIVER=memory
// and the concurrency tests.
package memory

import (
	"sync"
	"time"

	"github.com/honeynil/game-payment-ledger/internal/models"
)

type Store struct {
	mu           sync.RWMutex
	games        map[int64]models.Game
	participants map[int64]map[int64]struct{}
	accounts     map[int64]models.Account
	accountKeys  map[models.AccountKey]int64
	payments     []models.Payment
	locks        map[int64]*sync.Mutex

	nextAccountID int64
	nextPaymentID int64
	lastStamp     time.Time
}

func NewStore() *Store {
	return &Store{
		games:        make(map[int64]models.Game),
		participants: make(map[int64]map[int64]struct{}),
		accounts:     make(map[int64]models.Account),
		accountKeys:  make(map[models.AccountKey]int64),
		locks:        make(map[int64]*sync.Mutex),
	}
}

// AddGame registers a game and its roster, standing in for the game service.
func (s *Store) AddGame(game models.Game, participants ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.games[game.ID] = game
	roster, ok := s.participants[game.ID]
	if !ok {
		roster = make(map[int64]struct{})
		s.participants[game.ID] = roster
	}
	for _, userID := range participants {
		roster[userID] = struct{}{}
	}
}

// accountLock returns the row lock of an account. Callers hold s.mu.
func (s *Store) accountLock(id int64) *sync.Mutex {
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// stamp returns a strictly increasing timestamp at microsecond precision,
// matching what postgres stores. Callers hold s.mu.
func (s *Store) stamp() time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

// commit assigns ids and stamps to staged payments and appends them. Both
// grow strictly across commits, so the ledger stays ordered by
// (payment_on, id) and a row never lands before one a reader already saw.
// Callers hold s.mu for writing.
func (s *Store) commit(staged []*models.Payment) {
	for _, p := range staged {
		s.nextPaymentID++
		p.ID = s.nextPaymentID
		p.PaymentOn = s.stamp()
		s.payments = append(s.payments, *p)
	}
}
