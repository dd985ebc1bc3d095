package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"socialnet/internal/models"
)

// MemoryUserRepository is a process-local UserRepository. Emails are unique
// case-insensitively, as with the database index.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[uint]models.User
	nextID uint
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[uint]models.User), nextID: 1}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	now := time.Now()
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt, user.UpdatedAt = now, now
	if user.ProfilePicture == "" {
		user.ProfilePicture = models.DefaultProfilePicture
	}
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) Exists(ctx context.Context, id uint) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok, nil
}

func (r *MemoryUserRepository) SearchByEmail(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error) {
	query = strings.ToLower(query)
	users := []models.User{}
	for _, u := range r.sorted() {
		if u.ID != excludeID && strings.Contains(strings.ToLower(u.Email), query) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *MemoryUserRepository) ListOthers(ctx context.Context, excludeID uint) ([]models.UserDisplayInfo, error) {
	infos := []models.UserDisplayInfo{}
	for _, u := range r.sorted() {
		if u.ID != excludeID {
			infos = append(infos, u.DisplayInfo())
		}
	}
	return infos, nil
}

func (r *MemoryUserRepository) GetDisplayInfoByIDs(ctx context.Context, ids []uint) ([]models.UserDisplayInfo, error) {
	wanted := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	infos := []models.UserDisplayInfo{}
	for _, u := range r.sorted() {
		if _, ok := wanted[u.ID]; ok {
			infos = append(infos, u.DisplayInfo())
		}
	}
	return infos, nil
}

func (r *MemoryUserRepository) sorted() []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MemoryMessageRepository is a process-local MessageRepository.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages map[uint]models.Message
	nextID   uint
	now      func() time.Time
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[uint]models.Message), nextID: 1, now: time.Now}
}

// SetClock replaces the time source used to stamp new messages.
func (r *MemoryMessageRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryMessageRepository) Create(ctx context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	message.ID = r.nextID
	r.nextID++
	message.CreatedAt, message.UpdatedAt = now, now
	r.messages[message.ID] = *message
	return nil
}

func (r *MemoryMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r *MemoryMessageRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	m.Content = content
	m.Edited = true
	m.UpdatedAt = r.now()
	r.messages[id] = m
	return nil
}

func (r *MemoryMessageRepository) ListBetween(ctx context.Context, userID, otherID uint, limit, offset int) ([]models.Message, error) {
	r.mu.RLock()
	out := []models.Message{}
	for _, m := range r.messages {
		if (m.FromUserID == userID && m.ToUserID == otherID) || (m.FromUserID == otherID && m.ToUserID == userID) {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if offset > 0 {
		if offset >= len(out) {
			return []models.Message{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryMessageRepository) LatestFrom(ctx context.Context, fromUserID, toUserID uint) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *models.Message
	for _, m := range r.messages {
		if m.FromUserID == fromUserID && m.ToUserID == toUserID && (latest == nil || m.ID > latest.ID) {
			m := m
			latest = &m
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

// MemoryRelationActivityRepository is a process-local RelationActivityRepository.
type MemoryRelationActivityRepository struct {
	mu      sync.RWMutex
	entries []models.RelationActivity
	events  map[string]struct{}
}

func NewMemoryRelationActivityRepository() *MemoryRelationActivityRepository {
	return &MemoryRelationActivityRepository{events: make(map[string]struct{})}
}

func (r *MemoryRelationActivityRepository) Record(ctx context.Context, activity *models.RelationActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.events[activity.EventID]; seen {
		return nil
	}
	r.events[activity.EventID] = struct{}{}
	activity.ID = uint(len(r.entries) + 1)
	activity.CreatedAt = time.Now()
	r.entries = append(r.entries, *activity)
	return nil
}

func (r *MemoryRelationActivityRepository) ListForUser(ctx context.Context, userID uint, limit int) ([]models.RelationActivity, error) {
	r.mu.RLock()
	out := []models.RelationActivity{}
	for _, a := range r.entries {
		if a.UserAID == userID || a.UserBID == userID {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
