package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/relation"
)

func TestCreateRelationValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 2)

	t.Run("self relation", func(t *testing.T) {
		_, err := env.relationSvc.Create(ctx, ids[0], ids[0], "me")
		assert.True(t, IsKind(err, KindValidation))
		assert.Equal(t, 0, env.relations.Len())
	})

	t.Run("message too long", func(t *testing.T) {
		_, err := env.relationSvc.Create(ctx, ids[0], ids[1], strings.Repeat("x", models.MaxRequestMessageLength+1))
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.relationSvc.Create(ctx, ids[0], 999, "")
		assert.True(t, IsKind(err, KindNotFound))
		_, err = env.relationSvc.Create(ctx, 999, ids[0], "")
		assert.True(t, IsKind(err, KindNotFound))
	})

	assert.Equal(t, 0, env.relations.Len())
	assert.Empty(t, env.producer.Messages())
}

func TestCreateRelationDuplicateBothOrderings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 2)
	a, b := ids[0], ids[1]

	rel, err := env.relationSvc.Create(ctx, a, b, "hi")
	require.NoError(t, err)
	assert.False(t, rel.Approved)

	_, err = env.relationSvc.Create(ctx, a, b, "again")
	assert.True(t, IsKind(err, KindDuplicate))
	_, err = env.relationSvc.Create(ctx, b, a, "mirror")
	assert.True(t, IsKind(err, KindDuplicate))
	assert.Equal(t, 1, env.relations.Len())
}

func TestClassifyAfterCreateAndAccept(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 2)
	a, b := ids[0], ids[1]

	_, err := env.relationSvc.Create(ctx, a, b, "hi")
	require.NoError(t, err)
	rows, _ := env.relations.FindPair(ctx, a, b)

	status, err := relation.Classify(a, b, rows)
	require.NoError(t, err)
	assert.Equal(t, relation.RequestPending, status)
	status, _ = relation.Classify(b, a, rows)
	assert.Equal(t, relation.RevertRequestPending, status)

	t.Run("reverse accept is not found", func(t *testing.T) {
		_, err := env.relationSvc.Accept(ctx, b, a)
		assert.True(t, IsKind(err, KindNotFound))
	})

	accepted, err := env.relationSvc.Accept(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, accepted.Approved)

	rows, _ = env.relations.FindPair(ctx, a, b)
	status, _ = relation.Classify(a, b, rows)
	assert.Equal(t, relation.RequestAccepted, status)
	status, _ = relation.Classify(b, a, rows)
	assert.Equal(t, relation.RevertRequestAccepted, status)

	friends, err := env.relationSvc.AreFriends(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, friends)
}

func TestAcceptMissingRelation(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedUsers(t, 2)

	_, err := env.relationSvc.Accept(context.Background(), ids[0], ids[1])
	assert.True(t, IsKind(err, KindNotFound))
	_, err = env.relationSvc.AcceptByID(context.Background(), 77)
	assert.True(t, IsKind(err, KindNotFound))
	_, err = env.relationSvc.Decline(context.Background(), 77)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestDeclineIsSoftReset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 2)
	a, b := ids[0], ids[1]

	rel, err := env.relationSvc.Create(ctx, a, b, "hi")
	require.NoError(t, err)

	declined, err := env.relationSvc.Decline(WithActor(ctx, b), rel.ID)
	require.NoError(t, err)
	assert.False(t, declined.Approved)
	assert.Equal(t, 1, env.relations.Len())

	_, err = env.relationSvc.Create(ctx, b, a, "")
	assert.True(t, IsKind(err, KindDuplicate))

	again, err := env.relationSvc.AcceptByID(ctx, rel.ID)
	require.NoError(t, err)
	assert.True(t, again.Approved)

	// ending a friendship goes through decline too
	_, err = env.relationSvc.Decline(WithActor(ctx, a), rel.ID)
	require.NoError(t, err)
	friends, err := env.relationSvc.AreFriends(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, friends)
}

func TestCheckParticipantAndResponder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 3)
	a, b, c := ids[0], ids[1], ids[2]

	rel, err := env.relationSvc.Create(ctx, a, b, "")
	require.NoError(t, err)

	assert.NoError(t, env.relationSvc.CheckParticipant(ctx, rel.ID, a))
	assert.NoError(t, env.relationSvc.CheckParticipant(ctx, rel.ID, b))
	assert.True(t, IsKind(env.relationSvc.CheckParticipant(ctx, rel.ID, c), KindForbidden))

	assert.NoError(t, env.relationSvc.CheckResponder(ctx, rel.ID, b))
	assert.True(t, IsKind(env.relationSvc.CheckResponder(ctx, rel.ID, a), KindForbidden))
	assert.True(t, IsKind(env.relationSvc.CheckResponder(ctx, 404, a), KindNotFound))
}

func TestMutualFriendCount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 6)
	u := func(n int) uint { return ids[n-1] }

	// Friends(1) = {2,3,4}, Friends(5) = {3,4,6}
	env.befriend(t, u(1), u(2))
	env.befriend(t, u(3), u(1))
	env.befriend(t, u(1), u(4))
	env.befriend(t, u(5), u(3))
	env.befriend(t, u(4), u(5))
	env.befriend(t, u(5), u(6))
	// a pending request is not a friendship
	_, err := env.relationSvc.Create(ctx, u(2), u(5), "")
	require.NoError(t, err)

	n, err := env.relationSvc.MutualFriendCount(ctx, u(1), u(5))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	m, err := env.relationSvc.MutualFriendCount(ctx, u(5), u(1))
	require.NoError(t, err)
	assert.Equal(t, n, m)

	_, err = env.relationSvc.MutualFriendCount(ctx, u(1), u(1))
	assert.True(t, IsKind(err, KindValidation))
}

func TestListOthersWithStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 4)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]

	_, err := env.relationSvc.Create(ctx, a, b, "hi")
	require.NoError(t, err)
	_, err = env.relationSvc.Create(ctx, c, a, "from c")
	require.NoError(t, err)
	env.befriend(t, c, b)

	views, err := env.relationSvc.ListOthersWithStatus(ctx, a)
	require.NoError(t, err)
	require.Len(t, views, 3)
	byID := map[uint]UserWithStatus{}
	for _, v := range views {
		byID[v.UserID] = v
	}

	assert.Equal(t, relation.RequestPending, byID[b].RequestStatusNumber)
	require.NotNil(t, byID[b].RequestMessage)
	assert.Equal(t, "hi", *byID[b].RequestMessage)
	assert.Nil(t, byID[b].MutualFriendNumber)
	assert.False(t, byID[b].TimeOffset.IsZero())

	assert.Equal(t, relation.RevertRequestPending, byID[c].RequestStatusNumber)
	assert.Equal(t, "from c", *byID[c].RequestMessage)

	assert.Equal(t, relation.WithoutRequest, byID[d].RequestStatusNumber)
	assert.Nil(t, byID[d].RequestMessage)

	_, err = env.relationSvc.Accept(ctx, a, b)
	require.NoError(t, err)
	views, err = env.relationSvc.ListOthersWithStatus(ctx, a)
	require.NoError(t, err)
	for _, v := range views {
		if v.UserID == b {
			assert.Equal(t, relation.RequestAccepted, v.RequestStatusNumber)
			assert.Nil(t, v.RequestMessage)
			require.NotNil(t, v.MutualFriendNumber)
			assert.Equal(t, 0, *v.MutualFriendNumber)
		}
	}

	_, err = env.relationSvc.ListOthersWithStatus(ctx, 999)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestListOthersWithStatusReportsDuplicateRows(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 3)
	a, b := ids[0], ids[1]

	env.relations.Insert(models.UserRelation{UserAID: a, UserBID: b})
	env.relations.Insert(models.UserRelation{UserAID: b, UserBID: a, Approved: true})

	views, err := env.relationSvc.ListOthersWithStatus(ctx, a)
	require.NoError(t, err)
	for _, v := range views {
		if v.UserID == b {
			assert.Equal(t, relation.ErrorWithRelationNumbers, v.RequestStatusNumber)
			assert.Nil(t, v.MutualFriendNumber)
		} else {
			assert.Equal(t, relation.WithoutRequest, v.RequestStatusNumber)
		}
	}
}

func TestListFriends(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 4)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]

	env.befriend(t, a, b)
	env.befriend(t, c, a)
	env.befriend(t, b, c)
	_, err := env.relationSvc.Create(ctx, a, d, "")
	require.NoError(t, err)

	friends, err := env.relationSvc.ListFriends(ctx, a)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, b, friends[0].UserID)
	assert.Equal(t, relation.RequestAccepted, friends[0].RequestStatusNumber)
	assert.Equal(t, c, friends[1].UserID)
	assert.Equal(t, relation.RevertRequestAccepted, friends[1].RequestStatusNumber)
	require.NotNil(t, friends[0].MutualFriendNumber)
	assert.Equal(t, 1, *friends[0].MutualFriendNumber)

	empty, err := env.relationSvc.ListFriends(ctx, d)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestConcurrentCreateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 2)
	a, b := ids[0], ids[1]

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := a, b
			if i%2 == 1 {
				from, to = b, a
			}
			_, errs[i] = env.relationSvc.Create(ctx, from, to, "race")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, IsKind(err, KindDuplicate), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, env.relations.Len())

	dups, err := env.relations.FindDuplicatePairs(ctx)
	require.NoError(t, err)
	assert.Empty(t, dups)

	rows, _ := env.relations.FindPair(ctx, a, b)
	_, err = relation.Classify(a, b, rows)
	assert.NoError(t, err)
}

func TestRelationEventsArePublished(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 2)
	a, b := ids[0], ids[1]

	rel, err := env.relationSvc.Create(ctx, a, b, "hi")
	require.NoError(t, err)
	_, err = env.relationSvc.Accept(ctx, a, b)
	require.NoError(t, err)
	_, err = env.relationSvc.Decline(WithActor(ctx, a), rel.ID)
	require.NoError(t, err)

	msgs := env.producer.Messages()
	require.Len(t, msgs, 3)
	kinds := []imtypes.RelationEventKind{}
	for _, m := range msgs {
		assert.Equal(t, "relation-events", m.Topic)
		var ev imtypes.RelationEvent
		require.NoError(t, json.Unmarshal(m.Payload, &ev))
		assert.Equal(t, rel.ID, ev.RelationID)
		assert.Equal(t, ev.PartitionKey(), string(m.Key))
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []imtypes.RelationEventKind{imtypes.RelationEventCreated, imtypes.RelationEventAccepted, imtypes.RelationEventDeclined}, kinds)

	var declined imtypes.RelationEvent
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &declined))
	assert.Equal(t, a, declined.ActorUserID)
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seedUsers(t, 2)
	env.producer.Err = errors.New("broker down")

	rel, err := env.relationSvc.Create(context.Background(), ids[0], ids[1], "")
	require.NoError(t, err)
	assert.NotZero(t, rel.ID)
}

func TestListActivity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.activities.Record(ctx, &models.RelationActivity{EventID: "e1", RelationID: 1, Kind: models.RelationActivityCreated, UserAID: 1, UserBID: 2}))

	list, err := env.relationSvc.ListActivity(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = env.relationSvc.ListActivity(ctx, 9, 10)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestCreateMapsStoreErrors(t *testing.T) {
	connReset := errors.New("conn reset")
	tests := []struct {
		name  string
		err   error
		kind  ErrorKind
		cause error
	}{
		{"unique violation", gorm.ErrDuplicatedKey, KindDuplicate, gorm.ErrDuplicatedKey},
		{"store failure", connReset, KindOperationFailed, connReset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ids := env.seedUsers(t, 2)
			repo := createErrRelations{MemoryUserRelationRepository: env.relations, err: tt.err}
			svc := NewRelationService(repo, env.activities, env.userSvc, env.producer, testConfig.Kafka, zap.NewNop())

			rel, err := svc.Create(context.Background(), ids[0], ids[1], "hi")
			assert.Nil(t, rel)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
			assert.ErrorIs(t, err, tt.cause)
			assert.Empty(t, env.producer.Messages())
		})
	}
}

func TestAreFriendsSurfacesDuplicateRows(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ids := env.seedUsers(t, 2)
	a, b := ids[0], ids[1]
	env.relations.Insert(models.UserRelation{UserAID: a, UserBID: b, Approved: true})
	env.relations.Insert(models.UserRelation{UserAID: b, UserBID: a, Approved: true})

	friends, err := env.relationSvc.AreFriends(ctx, a, b)
	assert.False(t, friends)
	assert.True(t, IsKind(err, KindConsistency), "got %v", err)
	var ce *relation.ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Rows)

	_, err = env.messageSvc.Send(ctx, a, b, "hello")
	assert.True(t, IsKind(err, KindConsistency), "got %v", err)
}
