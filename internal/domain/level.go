package domain

// LevelTier is one step of the level table.
type LevelTier struct {
	Tier  int    `json:"tier"`
	Name  string `json:"name"`
	MinXP int64  `json:"min_xp"`
}

// UserLevel is the level derived from an XP value.
type UserLevel struct {
	Tier      int     `json:"tier"`
	Name      string  `json:"name"`
	XP        int64   `json:"xp"`
	MinXP     int64   `json:"min_xp"`
	NextMinXP int64   `json:"next_min_xp,omitempty"` // 0 at the top tier
	Progress  float64 `json:"progress"`              // 0..1 towards the next tier
	XPToNext  int64   `json:"xp_to_next"`
}

// IsMaxTier reports whether no tier lies above this level.
func (l UserLevel) IsMaxTier() bool {
	return l.NextMinXP == 0 && l.XPToNext == 0 && l.Progress == 1
}
