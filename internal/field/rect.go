package field

// Rect is an axis-aligned rectangle in field-local coordinates, used to
// filter a mob skill's area effect to nearby targets. Grounded on
// original_source/crates/shroom-game/src/life/mob/pool.rs's
// iter_mut_range, which filters a Box2 translated by the caster's
// position rather than carrying absolute coordinates in the template.
type Rect struct{ MinX, MinY, MaxX, MaxY int16 }

// Contains reports whether p falls within r, inclusive of the edges.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// rangeRect builds the rectangle for a skill's full width w and height h,
// centered on center. ok is false when the skill carries no rectangle (w or h is
// zero), matching the original's Option<MobSkillRange> == None meaning
// "applies room-wide".
func rangeRect(center Point, w, h int16) (rect Rect, ok bool) {
	if w <= 0 || h <= 0 {
		return Rect{}, false
	}
	return Rect{
		MinX: center.X - w/2, MaxX: center.X + w/2,
		MinY: center.Y - h/2, MaxY: center.Y + h/2,
	}, true
}
