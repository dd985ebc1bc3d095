package relation

import (
	"sort"

	"socialnet/internal/models"
)

// IDSet is a set of user ids.
type IDSet map[uint]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...uint) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s IDSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}

// Intersect returns the ids present in both sets, walking the smaller one.
func (s IDSet) Intersect(other IDSet) IDSet {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	out := make(IDSet)
	for id := range small {
		if large.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []uint {
	ids := make([]uint, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FriendsOf returns the counterpart of every approved row touching userID.
func FriendsOf(userID uint, rows []models.UserRelation) IDSet {
	friends := make(IDSet)
	for _, row := range rows {
		if !row.Approved {
			continue
		}
		if other, ok := row.OtherSide(userID); ok && other != userID {
			friends[other] = struct{}{}
		}
	}
	return friends
}

// MutualCount is |a ∩ b|, costing O(min(|a|, |b|)).
func MutualCount(a, b IDSet) int {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for id := range small {
		if large.Has(id) {
			n++
		}
	}
	return n
}

// FriendGraph holds the friend sets of several users built from one batch of
// approved rows.
type FriendGraph map[uint]IDSet

// NewFriendGraph indexes approved rows by both endpoints.
func NewFriendGraph(rows []models.UserRelation) FriendGraph {
	g := make(FriendGraph)
	for _, row := range rows {
		if !row.Approved || row.UserAID == row.UserBID {
			continue
		}
		g.add(row.UserAID, row.UserBID)
		g.add(row.UserBID, row.UserAID)
	}
	return g
}

func (g FriendGraph) add(user, friend uint) {
	set, ok := g[user]
	if !ok {
		set = make(IDSet)
		g[user] = set
	}
	set[friend] = struct{}{}
}

// Friends returns the friend set of userID, empty when unknown.
func (g FriendGraph) Friends(userID uint) IDSet {
	if set, ok := g[userID]; ok {
		return set
	}
	return IDSet{}
}

// Mutual counts the friends userID and otherID share.
func (g FriendGraph) Mutual(userID, otherID uint) int {
	return MutualCount(g.Friends(userID), g.Friends(otherID))
}
