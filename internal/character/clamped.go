// Package character implements the per-character simulation state: stats,
// buffs, skills, inventories, and quest records (spec §3, SPEC_FULL.md §3).
package character

// Number is the set of integer kinds a ClampedStat can wrap. Both
// characters and mobs clamp hp/mp this way (spec §8 invariant 1).
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// ClampedStat holds a current value that never leaves [0, Max], saturating
// on both ends instead of wrapping or going negative. Grounded on
// original_source life/char/stats.rs's ClampedStat<T>.
type ClampedStat[T Number] struct {
	Value T
	Max   T
}

// Maxed returns a stat at full value.
func Maxed[T Number](max T) ClampedStat[T] {
	return ClampedStat[T]{Value: max, Max: max}
}

// AddSigned adds delta (positive or negative) to Value, saturating at 0
// and Max.
func (c *ClampedStat[T]) AddSigned(delta int64) {
	v := int64(c.Value) + delta
	if v < 0 {
		v = 0
	}
	if max := int64(c.Max); v > max {
		v = max
	}
	c.Value = T(v)
}

// TryAdd applies delta only when the result stays within [0, Max] and
// reports whether it did; otherwise Value is left unchanged (used where a caller must know a cost could
// not be paid in full, e.g. skill mp debit).
func (c *ClampedStat[T]) TryAdd(delta int64) bool {
	v := int64(c.Value) + delta
	if v < 0 || v > int64(c.Max) {
		return false
	}
	c.Value = T(v)
	return true
}

// Ratio100 returns Value as a percentage of Max, rounded down, 0 if Max is 0.
func (c *ClampedStat[T]) Ratio100() int {
	if c.Max == 0 {
		return 0
	}
	return int(int64(c.Value) * 100 / int64(c.Max))
}

// IsZero reports whether the stat has been depleted.
func (c *ClampedStat[T]) IsZero() bool { return c.Value == 0 }
