package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserRelation(t *testing.T) {
	t.Run("valid request is unapproved with canonical pair", func(t *testing.T) {
		rel, err := NewUserRelation(7, 3, "hi")
		require.NoError(t, err)
		assert.Equal(t, uint(7), rel.UserAID)
		assert.Equal(t, uint(3), rel.UserBID)
		assert.Equal(t, uint(3), rel.PairLow)
		assert.Equal(t, uint(7), rel.PairHigh)
		assert.False(t, rel.Approved)
		assert.Equal(t, "hi", rel.RequestMessage)
	})

	t.Run("self relation fails loudly", func(t *testing.T) {
		rel, err := NewUserRelation(4, 4, "me")
		assert.ErrorIs(t, err, ErrSelfRelation)
		assert.Nil(t, rel)
	})

	t.Run("zero id", func(t *testing.T) {
		_, err := NewUserRelation(0, 4, "")
		assert.ErrorIs(t, err, ErrInvalidRelationUser)
	})

	t.Run("message bound counts runes", func(t *testing.T) {
		_, err := NewUserRelation(1, 2, strings.Repeat("é", MaxRequestMessageLength))
		assert.NoError(t, err)
		_, err = NewUserRelation(1, 2, strings.Repeat("a", MaxRequestMessageLength+1))
		assert.ErrorIs(t, err, ErrRequestMessageTooLong)
	})
}

func TestUserRelationBeforeCreate(t *testing.T) {
	rel := &UserRelation{UserAID: 5, UserBID: 5}
	assert.ErrorIs(t, rel.BeforeCreate(nil), ErrSelfRelation)

	rel = &UserRelation{UserAID: 9, UserBID: 2}
	require.NoError(t, rel.BeforeCreate(nil))
	assert.Equal(t, uint(2), rel.PairLow)
	assert.Equal(t, uint(9), rel.PairHigh)
}

func TestUserRelationSides(t *testing.T) {
	rel := &UserRelation{UserAID: 1, UserBID: 2}

	other, ok := rel.OtherSide(1)
	assert.True(t, ok)
	assert.Equal(t, uint(2), other)

	other, ok = rel.OtherSide(2)
	assert.True(t, ok)
	assert.Equal(t, uint(1), other)

	_, ok = rel.OtherSide(3)
	assert.False(t, ok)

	assert.True(t, rel.Connects(1, 2))
	assert.True(t, rel.Connects(2, 1))
	assert.False(t, rel.Connects(1, 3))

	rel.Accept()
	assert.True(t, rel.Approved)
	rel.Decline()
	assert.False(t, rel.Approved)
}

func TestMessageEditWindow(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &Message{BaseModel: BaseModel{CreatedAt: created}, FromUserID: 1, ToUserID: 2}

	assert.True(t, msg.EditableAt(created.Add(2*time.Minute), 3*time.Minute))
	assert.True(t, msg.EditableAt(created.Add(3*time.Minute), 3*time.Minute))
	assert.False(t, msg.EditableAt(created.Add(3*time.Minute+time.Second), 3*time.Minute))

	assert.True(t, msg.Involves(1))
	assert.True(t, msg.Involves(2))
	assert.False(t, msg.Involves(3))
}

func TestUserPicture(t *testing.T) {
	u := &User{ProfilePicture: DefaultProfilePicture}
	assert.False(t, u.HasCustomPicture())
	u.ProfilePicture = "/uploads/abc.png"
	assert.True(t, u.HasCustomPicture())
}
