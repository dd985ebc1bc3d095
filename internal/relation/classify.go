package relation

import (
	"errors"
	"fmt"

	"socialnet/internal/models"
)

// ErrUnrelatedRow is returned when a row handed to Classify does not join the
// two users being classified.
var ErrUnrelatedRow = errors.New("relation row does not connect the classified users")

// ConsistencyError reports more than one row for an unordered pair. Correct
// writes never produce it.
type ConsistencyError struct {
	UserID  uint
	OtherID uint
	Rows    int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("relation consistency error: %d rows for pair {%d, %d}", e.Rows, e.UserID, e.OtherID)
}

// Classify returns the status of the pair {viewerID, otherID} from the
// viewer's side. rows must be every row touching the pair.
func Classify(viewerID, otherID uint, rows []models.UserRelation) (RequestStatus, error) {
	switch len(rows) {
	case 0:
		return WithoutRequest, nil
	case 1:
	default:
		return ErrorWithRelationNumbers, &ConsistencyError{UserID: viewerID, OtherID: otherID, Rows: len(rows)}
	}

	row := rows[0]
	switch {
	case row.UserAID == viewerID && row.UserBID == otherID:
		if row.Approved {
			return RequestAccepted, nil
		}
		return RequestPending, nil
	case row.UserAID == otherID && row.UserBID == viewerID:
		if row.Approved {
			return RevertRequestAccepted, nil
		}
		return RevertRequestPending, nil
	}
	return UnknownError, fmt.Errorf("%w: row %d is (%d, %d), classified {%d, %d}",
		ErrUnrelatedRow, row.ID, row.UserAID, row.UserBID, viewerID, otherID)
}

// Index groups the rows touching one viewer by counterpart so a listing can
// classify every other user in memory after a single fetch.
type Index struct {
	viewerID uint
	byOther  map[uint][]models.UserRelation
}

// NewIndex indexes rows for viewerID. Rows that do not involve the viewer
// are ignored.
func NewIndex(viewerID uint, rows []models.UserRelation) *Index {
	idx := &Index{viewerID: viewerID, byOther: make(map[uint][]models.UserRelation, len(rows))}
	for _, row := range rows {
		other, ok := row.OtherSide(viewerID)
		if !ok || other == viewerID {
			continue
		}
		idx.byOther[other] = append(idx.byOther[other], row)
	}
	return idx
}

// Status classifies the viewer's relation with otherID.
func (idx *Index) Status(otherID uint) (RequestStatus, error) {
	return Classify(idx.viewerID, otherID, idx.byOther[otherID])
}

// Row returns the single row joining the viewer and otherID, if there is
// exactly one.
func (idx *Index) Row(otherID uint) (models.UserRelation, bool) {
	rows := idx.byOther[otherID]
	if len(rows) != 1 {
		return models.UserRelation{}, false
	}
	return rows[0], true
}

// Counterparts returns every user id the viewer has at least one row with.
func (idx *Index) Counterparts() []uint {
	ids := make([]uint, 0, len(idx.byOther))
	for id := range idx.byOther {
		ids = append(ids, id)
	}
	return ids
}

// CanAccept reports whether accepterID may accept rel as a request sent by
// requesterID. Only the exact stored direction matches.
func CanAccept(rel models.UserRelation, requesterID, accepterID uint) bool {
	return rel.UserAID == requesterID && rel.UserBID == accepterID
}

// IsResponder reports whether userID is the requestee of rel.
func IsResponder(rel models.UserRelation, userID uint) bool {
	return rel.UserBID == userID
}

// IsParticipant reports whether userID is either side of rel.
func IsParticipant(rel models.UserRelation, userID uint) bool {
	return rel.UserAID == userID || rel.UserBID == userID
}
