package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags holds the ledger's runtime toggles. Flags are read on every
// operation, so flipping one takes effect for the next transaction.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// === Enrollment ===
	FeatureEnforceCapacity = "enrollment.enforce_capacity"  // reject enroll when the batch is full
	FeatureOpenBatchesOnly = "enrollment.open_batches_only" // reject enroll into completed/cancelled batches

	// === Catalog ===
	FeatureOutlineCache = "catalog.outline_cache" // read-through cache for course outlines

	// === Events ===
	FeatureEventFanout = "events.redis_fanout" // publish ledger events to Redis
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()
	ff.loadFromEnvironment()
	return ff
}

// NewFeatureFlags returns the defaults without reading the environment.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureEnforceCapacity] = &Feature{
		Name:        FeatureEnforceCapacity,
		Description: "Treat max_capacity as a hard limit at enroll time",
		Enabled:     true,
	}

	ff.features[FeatureOpenBatchesOnly] = &Feature{
		Name:        FeatureOpenBatchesOnly,
		Description: "Only upcoming and active batches accept enrollments",
		Enabled:     true,
	}

	ff.features[FeatureOutlineCache] = &Feature{
		Name:        FeatureOutlineCache,
		Description: "Cache course outlines in Redis",
		Enabled:     true,
	}

	ff.features[FeatureEventFanout] = &Feature{
		Name:        FeatureEventFanout,
		Description: "Publish committed ledger events on Redis pub/sub",
		Enabled:     false,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_ENROLLMENT_ENFORCE_CAPACITY=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "enrollment.enforce_capacity" -> "FEATURE_ENROLLMENT_ENFORCE_CAPACITY"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether the flag is on. Unknown flags are off.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// Set turns a flag on or off.
func (ff *FeatureFlags) Set(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// EnableFeature turns a flag on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.Set(featureName, true)
}

// DisableFeature turns a flag off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.Set(featureName, false)
}

// GetAllFeatures returns copies of every flag sorted by name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, v := range ff.features {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// --- Errors ---

var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
