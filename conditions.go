package hxhydrate

// reducedMotionQuery is the media query behind Conditions.ReducedMotion.
const reducedMotionQuery = "(prefers-reduced-motion: reduce)"

// Satisfies reports whether every present clause of c holds in env. A nil
// c is always satisfied. Clauses whose environment signal is unavailable
// are skipped rather than failed.
func Satisfies(env Environment, c *Conditions) bool {
	return satisfies(env, c, "")
}

// satisfies is Satisfies minus the clause the given strategy waits on
// itself: the media query for media-query, the network class for network.
func satisfies(env Environment, c *Conditions, waiting Strategy) bool {
	if c == nil {
		return true
	}

	if c.MediaQuery != "" && waiting != StrategyMediaQuery && env.Media != nil {
		if !env.Media.Matches(c.MediaQuery) {
			return false
		}
	}

	if c.NetworkType != "" && waiting != StrategyNetwork && env.Network != nil {
		if t, ok := env.Network.EffectiveType(); ok && t != c.NetworkType {
			return false
		}
	}

	if c.SaveData != nil && env.Network != nil {
		if s, ok := env.Network.SaveData(); ok && s != *c.SaveData {
			return false
		}
	}

	if c.MinDeviceMemory > 0 && env.Device != nil {
		if gb, ok := env.Device.Memory(); ok && gb < c.MinDeviceMemory {
			return false
		}
	}

	if c.MinBatteryLevel > 0 && env.Device != nil {
		if level, ok := env.Device.BatteryLevel(); ok && level < c.MinBatteryLevel {
			return false
		}
	}

	if c.ReducedMotion != nil && env.Media != nil {
		if env.Media.Matches(reducedMotionQuery) != *c.ReducedMotion {
			return false
		}
	}

	return true
}
