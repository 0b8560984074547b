package config

import "time"

// DrawLimitConfig configures the token bucket in front of the draw
// endpoints.  Its main job is to absorb double clicks: the default allows
// a short burst per operator and prize, then one request per refill.
type DrawLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
	Debug          bool
}

func LoadDrawLimitConfig() DrawLimitConfig {
	def := DrawLimitConfig{
		Enabled:        envBool("DRAW_LIMIT_ENABLED", true),
		Capacity:       envInt("DRAW_LIMIT_CAPACITY", 3),
		RefillTokens:   envInt("DRAW_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("DRAW_LIMIT_REFILL_INTERVAL", 2*time.Second),
		TTL:            envDur("DRAW_LIMIT_TTL", 10*time.Minute),
		Prefix:         envStr("DRAW_LIMIT_PREFIX", "drawrl"),
		Debug:          envBool("DRAW_LIMIT_DEBUG", false),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}
