package field

// FlatGround is a trivial GroundFinder that reports ground directly
// below every probe point. Foothold geometry is one of spec.md §1's
// named opaque external collaborators ("pathfinding over footholds") —
// real per-map platform data belongs to a terrain service this repo
// doesn't implement. FlatGround exists so SpreadDrops has a concrete
// collaborator to exercise rather than never being called.
type FlatGround struct{}

func (FlatGround) FootholdBelow(x, y int16) (Point, bool) {
	return Point{X: x, Y: y}, true
}
