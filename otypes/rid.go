package otypes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gorient/gorient/oerror"
)

// RID addresses one record as (cluster id, cluster position),
// conventionally rendered "#cluster:position".
type RID struct {
	Cluster  int16
	Position int64
}

// NewRID returns the sentinel RID of a record the server has not
// assigned an identity to yet.
func NewRID() RID {
	return RID{Cluster: -1, Position: -1}
}

// IsValid reports whether the RID addresses a stored record
func (r RID) IsValid() bool {
	return r.Cluster >= 0 && r.Position >= 0
}

// IsTemporary reports whether the RID is a client-side placeholder used
// inside a transaction batch (negative position under a valid cluster).
func (r RID) IsTemporary() bool {
	return r.Cluster >= 0 && r.Position < 0
}

// String renders the conventional "#cluster:position" form
func (r RID) String() string {
	return fmt.Sprintf("#%d:%d", r.Cluster, r.Position)
}

// ParseRID parses "#cluster:position" (the leading '#' is optional)
func ParseRID(s string) (RID, error) {
	trimmed := strings.TrimPrefix(s, "#")
	parts := strings.SplitN(trimmed, ":", 2)
	if len(parts) != 2 {
		return RID{}, oerror.NewUsageError("not a valid record id: %q", s)
	}

	cluster, err := strconv.ParseInt(parts[0], 10, 16)
	if err != nil {
		return RID{}, oerror.NewUsageError("not a valid cluster id in %q: %v", s, err)
	}
	position, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return RID{}, oerror.NewUsageError("not a valid cluster position in %q: %v", s, err)
	}

	return RID{Cluster: int16(cluster), Position: position}, nil
}

// Link is a lightweight reference to a record. It identifies a record
// without owning or loading it.
type Link struct {
	RID RID
}

// String renders the link as its target RID
func (l Link) String() string { return l.RID.String() }
