package graph

import "errors"

// ErrParentNotFound is returned when a branch targets a parent node that does
// not exist in the topology store.
var ErrParentNotFound = errors.New("parent node not found")
