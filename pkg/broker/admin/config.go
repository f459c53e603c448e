package admin

// EffectiveConfig is the read-only view getConfig exposes: the
// defaults new queues inherit when a field is left unspecified
// (spec.md §4.7 "getConfig").
type EffectiveConfig struct {
	DefaultAckTimeoutSeconds int  `json:"default_ack_timeout_seconds"`
	DefaultMaxAttempts       int  `json:"default_max_attempts"`
	ActorTokenRequired       bool `json:"actor_token_required"`
}

// GetConfig returns the surface's effective defaults.
func (s *Surface) GetConfig() EffectiveConfig {
	return EffectiveConfig{
		DefaultAckTimeoutSeconds: int(s.cfg.DefaultAckTimeout.Seconds()),
		DefaultMaxAttempts:       s.cfg.DefaultMaxRetries,
		ActorTokenRequired:       len(s.cfg.ActorTokenSecret) > 0,
	}
}
