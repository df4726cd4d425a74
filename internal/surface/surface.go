// Package surface names the faces stored in the surface store.
package surface

import "strconv"

// ID identifies one surface. The same surface may be referenced by several
// sectors, e.g. a wall shared between two rooms.
type ID uint64

func (id ID) Next() ID       { return id + 1 }
func (id ID) String() string { return "surface#" + strconv.FormatUint(uint64(id), 10) }
