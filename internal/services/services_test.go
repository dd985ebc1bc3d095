package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"socialnet/internal/auth"
	"socialnet/internal/config"
	"socialnet/internal/kafka"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

type testEnv struct {
	users      *storage.MemoryUserRepository
	relations  *storage.MemoryUserRelationRepository
	messages   *storage.MemoryMessageRepository
	activities *storage.MemoryRelationActivityRepository
	producer   *kafka.NoopProducer
	blacklist  *auth.MemoryTokenBlacklist

	userSvc     UserService
	relationSvc RelationService
	messageSvc  MessageService
	authSvc     AuthService
}

var testConfig = config.Config{
	Auth:    config.AuthConfig{JWTSecretKey: "test-secret", JWTExpiry: time.Hour},
	Kafka:   config.KafkaConfig{RelationEventsTopic: "relation-events"},
	Message: config.MessageConfig{EditWindow: 3 * time.Minute, MaxHistory: 50},
	Storage: config.StorageConfig{DefaultProfilePicture: models.DefaultProfilePicture},
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	env := &testEnv{
		users:      storage.NewMemoryUserRepository(),
		relations:  storage.NewMemoryUserRelationRepository(),
		messages:   storage.NewMemoryMessageRepository(),
		activities: storage.NewMemoryRelationActivityRepository(),
		producer:   kafka.NewNoopProducer(),
		blacklist:  auth.NewMemoryTokenBlacklist(),
	}
	pictures := &fakeStorage{}
	env.userSvc = NewUserService(env.users, pictures, log)
	env.relationSvc = NewRelationService(env.relations, env.activities, env.userSvc, env.producer, testConfig.Kafka, log)
	env.messageSvc = NewMessageService(env.messages, env.userSvc, env.relationSvc, testConfig.Message, log)
	env.authSvc = NewAuthService(env.users, env.blacklist, testConfig, log)
	return env
}

// seedUsers creates n users and returns their ids in order.
func (e *testEnv) seedUsers(t *testing.T, n int) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		u := &models.User{
			Name:         "User",
			LastName:     string(rune('A' + i)),
			Email:        string(rune('a'+i)) + "@example.com",
			PasswordHash: "x",
		}
		require.NoError(t, e.users.Create(context.Background(), u))
		ids = append(ids, u.ID)
	}
	return ids
}

func (e *testEnv) befriend(t *testing.T, a, b uint) {
	t.Helper()
	ctx := context.Background()
	_, err := e.relationSvc.Create(ctx, a, b, "")
	require.NoError(t, err)
	_, err = e.relationSvc.Accept(ctx, a, b)
	require.NoError(t, err)
}
