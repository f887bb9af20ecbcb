package shared

// Feature flags consulted by the application layer.
const (
	FeatureCheckinBonus     = "rewards.checkin_bonus"
	FeatureAllMissionsBonus = "rewards.all_missions_bonus"
	FeatureMissionAutoGen   = "missions.auto_generate"
	FeatureEventFanout      = "events.redis_fanout"
)

// FeatureGate answers per-user feature flag questions.
type FeatureGate interface {
	EnabledFor(feature, userID string) bool
}

// FeatureEnabled treats a missing gate as "everything on".
func FeatureEnabled(gate FeatureGate, feature, userID string) bool {
	return gate == nil || gate.EnabledFor(feature, userID)
}
