// Package gfx names nodes of the render graph. Node storage lives with the
// renderer; this package only defines the handle.
package gfx

import "strconv"

// NodeID identifies a render-graph node.
type NodeID uint64

func (id NodeID) Next() NodeID   { return id + 1 }
func (id NodeID) String() string { return "node#" + strconv.FormatUint(uint64(id), 10) }
