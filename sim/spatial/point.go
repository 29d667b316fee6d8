// Package spatial implements proximity queries and velocity-based movement
// over 3D points keyed by entity id.
package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Interpolate computes an entity's live position given its last known
// position, velocity, and the time elapsed since that position was
// recorded. It is the single formula every live-position read in the
// system goes through: the reducer never mutates Position except on
// entity.created / entity.moved, so everything in between is derived here.
func Interpolate(position, velocity mgl64.Vec3, lastUpdateTime, currentTime float64) mgl64.Vec3 {
	dt := currentTime - lastUpdateTime
	return position.Add(velocity.Mul(dt))
}

// Distance2D returns the Euclidean distance between a and b ignoring Z,
// used for include_z=false queries over a notionally flat world.
func Distance2D(a, b mgl64.Vec3) float64 {
	dx := a.X() - b.X()
	dy := a.Y() - b.Y()
	return math.Sqrt(dx*dx + dy*dy)
}

// Distance3D returns the full Euclidean distance between a and b.
func Distance3D(a, b mgl64.Vec3) float64 {
	return a.Sub(b).Len()
}

// Point pairs an entity id with a position, the unit the index stores and
// returns from its queries.
type Point struct {
	ID       uuid.UUID
	Position mgl64.Vec3
}
