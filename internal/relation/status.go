// Package relation holds the pure friend-relation logic: status
// classification over fetched rows, transition checks and mutual friend
// counting. Nothing here touches storage.
package relation

import "fmt"

// RequestStatus is the relation between two users as seen by one of them.
// The numeric values are part of the public API and must not change.
type RequestStatus int

const (
	WithoutRequest           RequestStatus = 0
	RequestPending           RequestStatus = 1
	RequestAccepted          RequestStatus = 2
	RevertRequestPending     RequestStatus = 3
	RevertRequestAccepted    RequestStatus = 4
	ErrorWithRelationNumbers RequestStatus = 5
	UnknownError             RequestStatus = 6
)

var statusNames = map[RequestStatus]string{
	WithoutRequest:           "WithoutRequest",
	RequestPending:           "RequestPending",
	RequestAccepted:          "RequestAccepted",
	RevertRequestPending:     "RevertRequestPending",
	RevertRequestAccepted:    "RevertRequestAccepted",
	ErrorWithRelationNumbers: "ErrorWithRelationNumbers",
	UnknownError:             "UnknownError",
}

func (s RequestStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RequestStatus(%d)", int(s))
}

// IsPending reports a request still waiting for the requestee.
func (s RequestStatus) IsPending() bool {
	return s == RequestPending || s == RevertRequestPending
}

// IsAccepted reports an approved relation, whichever side requested it.
func (s RequestStatus) IsAccepted() bool {
	return s == RequestAccepted || s == RevertRequestAccepted
}
