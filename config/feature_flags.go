package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// FeatureFlags manages reward and mission toggles with gradual rollout.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID string
}

// Known flags; the names are shared with the application layer.
const (
	FeatureAllMissionsBonus = shared.FeatureAllMissionsBonus // bonus when every daily mission is done
	FeatureCheckinBonus     = shared.FeatureCheckinBonus     // coin bonus on daily checkin
	FeatureMissionAutoGen   = shared.FeatureMissionAutoGen   // lazily assign today's missions on read
	FeatureEventFanout      = shared.FeatureEventFanout      // mirror progression events to Redis Pub/Sub
)

var _ shared.FeatureGate = (*FeatureFlags)(nil)

// LoadFeatureFlags builds the flag set from defaults, FEATURE_* env vars and
// the given overrides (keys in env style, e.g. REWARDS_CHECKIN_BONUS).
func LoadFeatureFlags(overrides map[string]string) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}

	ff.initializeDefaults()
	ff.loadFromEnvironment()
	for key, val := range overrides {
		for name, feature := range ff.features {
			if featureNameToKey(name) == strings.ToUpper(key) {
				applyOverride(feature, val)
			}
		}
	}

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureAllMissionsBonus] = &Feature{
		Name:           FeatureAllMissionsBonus,
		Description:    "Bonus coins once all daily missions are completed",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCheckinBonus] = &Feature{
		Name:           FeatureCheckinBonus,
		Description:    "Coin bonus scaled by total checkins",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureMissionAutoGen] = &Feature{
		Name:           FeatureMissionAutoGen,
		Description:    "Assign today's missions on first read",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEventFanout] = &Feature{
		Name:           FeatureEventFanout,
		Description:    "Publish progression events to Redis Pub/Sub",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_REWARDS_CHECKIN_BONUS=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv("FEATURE_" + featureNameToKey(name)); val != "" {
			applyOverride(feature, val)
		}
	}
}

func applyOverride(feature *Feature, val string) {
	if b, err := strconv.ParseBool(val); err == nil {
		feature.Enabled = b
		if b {
			feature.RolloutPercent = 100
		} else {
			feature.RolloutPercent = 0
		}
		return
	}

	if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
		feature.Enabled = p > 0
		feature.RolloutPercent = p
	}
}

// featureNameToKey converts "rewards.checkin_bonus" to "REWARDS_CHECKIN_BONUS".
func featureNameToKey(name string) string {
	return strings.ReplaceAll(strings.ToUpper(name), ".", "_")
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil receiver treats every known default as enabled.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	if ff == nil {
		return featureName != FeatureEventFanout
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// EnabledFor is IsEnabled for a bare user id.
func (ff *FeatureFlags) EnabledFor(featureName, userID string) bool {
	return ff.IsEnabled(featureName, &FeatureContext{UserID: userID})
}

// isInRollout uses consistent hashing so users stay in their bucket.
func isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percent
}

// Rollout reports the effective rollout percentage of every flag, 0 for
// disabled ones. Logged once at startup.
func (ff *FeatureFlags) Rollout() map[string]int {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make(map[string]int, len(ff.features))
	for name, f := range ff.features {
		if f.Enabled {
			out[name] = f.RolloutPercent
		} else {
			out[name] = 0
		}
	}
	return out
}
