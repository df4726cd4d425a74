// Package collision names collidable meshes owned by the collision system.
package collision

import "strconv"

// MeshID identifies a collision mesh.
type MeshID uint64

func (id MeshID) Next() MeshID   { return id + 1 }
func (id MeshID) String() string { return "mesh#" + strconv.FormatUint(uint64(id), 10) }
