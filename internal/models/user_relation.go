package models

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

// MaxRequestMessageLength bounds UserRelation.RequestMessage, counted in runes.
const MaxRequestMessageLength = 100

var (
	ErrSelfRelation          = errors.New("a user cannot request a relation with themselves")
	ErrInvalidRelationUser   = errors.New("relation users must be non-zero ids")
	ErrRequestMessageTooLong = fmt.Errorf("request message must be at most %d characters", MaxRequestMessageLength)
)

// UserRelation is a directed friend request from UserA to UserB. It reads as
// an undirected friendship once approved.
//
// PairLow/PairHigh hold the unordered pair so the unique index also rejects
// the mirrored row (b, a) next to (a, b).
type UserRelation struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	UserAID        uint      `gorm:"not null;uniqueIndex:idx_user_relation_direction;index" json:"userAId"`
	UserBID        uint      `gorm:"not null;uniqueIndex:idx_user_relation_direction;index" json:"userBId"`
	PairLow        uint      `gorm:"not null;uniqueIndex:idx_user_relation_pair" json:"-"`
	PairHigh       uint      `gorm:"not null;uniqueIndex:idx_user_relation_pair" json:"-"`
	RequestMessage string    `gorm:"type:varchar(100)" json:"requestMessage"`
	Approved       bool      `gorm:"not null;default:false" json:"approved"`
	CreatedAt      time.Time `gorm:"not null;<-:create" json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName 指定 UserRelation 模型的表名。
func (UserRelation) TableName() string {
	return "user_relations"
}

// NewUserRelation builds an unapproved request from userAID to userBID.
func NewUserRelation(userAID, userBID uint, message string) (*UserRelation, error) {
	if err := ValidateRelationUsers(userAID, userBID); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(message) > MaxRequestMessageLength {
		return nil, ErrRequestMessageTooLong
	}
	rel := &UserRelation{
		UserAID:        userAID,
		UserBID:        userBID,
		RequestMessage: message,
	}
	rel.PairLow, rel.PairHigh = CanonicalPair(userAID, userBID)
	return rel, nil
}

// ValidateRelationUsers checks the two ids of a relation.
func ValidateRelationUsers(userAID, userBID uint) error {
	if userAID == 0 || userBID == 0 {
		return ErrInvalidRelationUser
	}
	if userAID == userBID {
		return ErrSelfRelation
	}
	return nil
}

// CanonicalPair orders two ids so the smaller one comes first.
func CanonicalPair(x, y uint) (uint, uint) {
	if x > y {
		return y, x
	}
	return x, y
}

// Accept marks the relation approved.
func (r *UserRelation) Accept() { r.Approved = true }

// Decline resets the approval flag. The row itself is kept.
func (r *UserRelation) Decline() { r.Approved = false }

// OtherSide returns the counterpart of userID in this relation.
func (r *UserRelation) OtherSide(userID uint) (uint, bool) {
	switch userID {
	case r.UserAID:
		return r.UserBID, true
	case r.UserBID:
		return r.UserAID, true
	}
	return 0, false
}

// Connects reports whether the relation joins x and y in either direction.
func (r *UserRelation) Connects(x, y uint) bool {
	return (r.UserAID == x && r.UserBID == y) || (r.UserAID == y && r.UserBID == x)
}

// BeforeCreate rejects self relations and fills the canonical pair columns.
func (r *UserRelation) BeforeCreate(tx *gorm.DB) error {
	if err := ValidateRelationUsers(r.UserAID, r.UserBID); err != nil {
		return err
	}
	r.PairLow, r.PairHigh = CanonicalPair(r.UserAID, r.UserBID)
	return nil
}
