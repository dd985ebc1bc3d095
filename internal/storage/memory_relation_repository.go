package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"socialnet/internal/models"
)

// MemoryUserRelationRepository keeps relations in process memory. It enforces
// the same pair uniqueness as the database schema and runs transactions one
// at a time, restoring the previous state when fn fails.
type MemoryUserRelationRepository struct {
	txMu   sync.Mutex
	mu     sync.RWMutex
	rows   map[uint]models.UserRelation
	nextID uint
	now    func() time.Time
}

// NewMemoryUserRelationRepository returns an empty in-memory store.
func NewMemoryUserRelationRepository() *MemoryUserRelationRepository {
	return &MemoryUserRelationRepository{
		rows:   make(map[uint]models.UserRelation),
		nextID: 1,
		now:    time.Now,
	}
}

// Insert stores rel without any checks. It exists to seed broken states.
func (r *MemoryUserRelationRepository) Insert(rel models.UserRelation) models.UserRelation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rel.ID == 0 {
		rel.ID = r.nextID
	}
	if rel.ID >= r.nextID {
		r.nextID = rel.ID + 1
	}
	rel.PairLow, rel.PairHigh = models.CanonicalPair(rel.UserAID, rel.UserBID)
	r.rows[rel.ID] = rel
	return rel
}

// Len returns the number of stored rows.
func (r *MemoryUserRelationRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

func (r *MemoryUserRelationRepository) Create(ctx context.Context, rel *models.UserRelation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rel.BeforeCreate(nil); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Connects(rel.UserAID, rel.UserBID) {
			return gorm.ErrDuplicatedKey
		}
	}
	now := r.now()
	rel.ID = r.nextID
	r.nextID++
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = now
	}
	rel.UpdatedAt = now
	r.rows[rel.ID] = *rel
	return nil
}

func (r *MemoryUserRelationRepository) GetByID(ctx context.Context, id uint) (*models.UserRelation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rel, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &rel, nil
}

func (r *MemoryUserRelationRepository) FindDirected(ctx context.Context, userAID, userBID uint) (*models.UserRelation, error) {
	rows := r.filter(func(rel models.UserRelation) bool {
		return rel.UserAID == userAID && rel.UserBID == userBID
	})
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func (r *MemoryUserRelationRepository) FindPair(ctx context.Context, x, y uint) ([]models.UserRelation, error) {
	return r.filter(func(rel models.UserRelation) bool { return rel.Connects(x, y) }), nil
}

func (r *MemoryUserRelationRepository) ListTouching(ctx context.Context, userID uint) ([]models.UserRelation, error) {
	return r.filter(func(rel models.UserRelation) bool {
		return rel.UserAID == userID || rel.UserBID == userID
	}), nil
}

func (r *MemoryUserRelationRepository) ListApprovedTouching(ctx context.Context, userIDs []uint) ([]models.UserRelation, error) {
	wanted := make(map[uint]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}
	return r.filter(func(rel models.UserRelation) bool {
		if !rel.Approved {
			return false
		}
		_, a := wanted[rel.UserAID]
		_, b := wanted[rel.UserBID]
		return a || b
	}), nil
}

func (r *MemoryUserRelationRepository) SetApproved(ctx context.Context, id uint, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rel.Approved = approved
	rel.UpdatedAt = r.now()
	r.rows[id] = rel
	return nil
}

// LockPair is a no-op: transactions are already serialized.
func (r *MemoryUserRelationRepository) LockPair(ctx context.Context, x, y uint) error {
	return ctx.Err()
}

func (r *MemoryUserRelationRepository) FindDuplicatePairs(ctx context.Context) ([]PairCount, error) {
	r.mu.RLock()
	counts := make(map[[2]uint]int64)
	for _, rel := range r.rows {
		low, high := models.CanonicalPair(rel.UserAID, rel.UserBID)
		counts[[2]uint{low, high}]++
	}
	r.mu.RUnlock()

	pairs := []PairCount{}
	for pair, n := range counts {
		if n > 1 {
			pairs = append(pairs, PairCount{UserLow: pair[0], UserHigh: pair[1], Rows: n})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].UserLow != pairs[j].UserLow {
			return pairs[i].UserLow < pairs[j].UserLow
		}
		return pairs[i].UserHigh < pairs[j].UserHigh
	})
	return pairs, nil
}

func (r *MemoryUserRelationRepository) Transaction(ctx context.Context, fn func(repo UserRelationRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	snapshot, nextID := r.snapshot()
	if err := fn(memoryRelationTx{r}); err != nil {
		r.restore(snapshot, nextID)
		return err
	}
	return nil
}

func (r *MemoryUserRelationRepository) filter(keep func(models.UserRelation) bool) []models.UserRelation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.UserRelation{}
	for _, rel := range r.rows {
		if keep(rel) {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryUserRelationRepository) snapshot() (map[uint]models.UserRelation, uint) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[uint]models.UserRelation, len(r.rows))
	for id, rel := range r.rows {
		cp[id] = rel
	}
	return cp, r.nextID
}

func (r *MemoryUserRelationRepository) restore(rows map[uint]models.UserRelation, nextID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = rows
	r.nextID = nextID
}

// memoryRelationTx is the view handed to a transaction body. Nested
// transactions join the outer one.
type memoryRelationTx struct {
	*MemoryUserRelationRepository
}

func (tx memoryRelationTx) Transaction(ctx context.Context, fn func(repo UserRelationRepository) error) error {
	return fn(tx)
}
