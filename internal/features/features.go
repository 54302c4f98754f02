package features

import (
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/DTADMI/gamehub-api/internal/identity"
)

// Flag names the client and game services key off.
const (
	FlagRealtime         = "realtime_enabled"
	FlagChat             = "chat_enabled"
	FlagSnakeLeaderboard = "snake_leaderboard_enabled"
	FlagAntiCheat        = "anti_cheat_enabled"
	FlagSnake3D          = "snake_3d_mode"
	FlagBreakoutBeta     = "breakout_multiplayer_beta"
)

// knownFlags fixes the evaluation and response order.
var knownFlags = []string{
	FlagRealtime,
	FlagChat,
	FlagSnakeLeaderboard,
	FlagAntiCheat,
	FlagSnake3D,
	FlagBreakoutBeta,
}

// Service evaluates feature flags. Base values come from built-in defaults and
// runtime overrides; segmentation rules (roles, email allow-lists, gradual
// rollout) are read through the Source on every evaluation. Call sites only
// depend on this type, so it can be swapped for an OpenFeature provider later.
type Service struct {
	source   Source
	defaults map[string]bool

	mu        sync.RWMutex
	overrides map[string]bool
}

// NewService creates a flag service with the portfolio's default flag set.
// Built-in defaults can be replaced at startup via FEATURE_<FLAG>_DEFAULT.
func NewService(source Source) *Service {
	if source == nil {
		source = EnvSource{}
	}

	defaults := map[string]bool{
		FlagRealtime:         true,
		FlagChat:             true,
		FlagSnakeLeaderboard: true,
		FlagAntiCheat:        false,
		FlagSnake3D:          false,
		FlagBreakoutBeta:     false,
	}
	for flag := range defaults {
		if raw := strings.TrimSpace(source.Get(segmentKey(flag, "DEFAULT"))); raw != "" {
			if v, err := strconv.ParseBool(raw); err == nil {
				defaults[flag] = v
			}
		}
	}

	return &Service{
		source:    source,
		defaults:  defaults,
		overrides: make(map[string]bool),
	}
}

// KnownFlags lists every flag the service evaluates, in stable order.
func (s *Service) KnownFlags() []string {
	out := make([]string, len(knownFlags))
	copy(out, knownFlags)
	return out
}

// IsEnabled returns the base value of a flag: runtime override first, then the
// built-in default. Unknown flags are always off.
func (s *Service) IsEnabled(flag string) bool {
	s.mu.RLock()
	override, ok := s.overrides[flag]
	s.mu.RUnlock()
	if ok {
		return override
	}
	return s.defaults[flag]
}

// Toggle sets a runtime override. Overrides are process-local and last until
// restart; they exist for dev and incident response, not as the primary
// rollout mechanism.
func (s *Service) Toggle(flag string, enabled bool) error {
	if _, known := s.defaults[flag]; !known {
		return fmt.Errorf("unknown feature flag %q", flag)
	}
	s.mu.Lock()
	s.overrides[flag] = enabled
	s.mu.Unlock()
	return nil
}

// EvaluateAll evaluates every known flag for the caller, segmentation rules
// included.
func (s *Service) EvaluateAll(id identity.Identity) map[string]bool {
	out := make(map[string]bool, len(knownFlags))
	for _, flag := range knownFlags {
		out[flag] = s.IsEnabledFor(flag, id)
	}
	return out
}

// Snapshot returns the base value of every known flag, ignoring segmentation.
func (s *Service) Snapshot() map[string]bool {
	out := make(map[string]bool, len(knownFlags))
	for _, flag := range knownFlags {
		out[flag] = s.IsEnabled(flag)
	}
	return out
}

// IsEnabledFor evaluates a flag for a specific caller. A disabled base value
// short-circuits; otherwise each configured segment rule must pass, and the
// rollout percentage is applied last using the caller's stable bucket.
//
// Segment settings are read per flag (examples for chat_enabled):
//
//	FEATURE_CHAT_ENABLED_ALLOW_ROLES=ROLE_ADMIN,ROLE_USER
//	FEATURE_CHAT_ENABLED_ALLOW_EMAILS=a@b.com,c@d.com
//	FEATURE_CHAT_ENABLED_ALLOW_EMAIL_DOMAINS=example.com,company.org
//	FEATURE_CHAT_ENABLED_ROLLOUT_PERCENT=25
func (s *Service) IsEnabledFor(flag string, id identity.Identity) bool {
	if !s.IsEnabled(flag) {
		return false
	}

	allowRoles := splitCSV(s.source.Get(segmentKey(flag, "ALLOW_ROLES")))
	allowEmails := splitCSV(s.source.Get(segmentKey(flag, "ALLOW_EMAILS")))
	allowDomains := splitCSV(s.source.Get(segmentKey(flag, "ALLOW_EMAIL_DOMAINS")))

	if len(allowRoles) > 0 && !anyRoleAllowed(id.Roles, allowRoles) {
		return false
	}
	if len(allowEmails) > 0 && (id.Email == "" || !contains(allowEmails, id.Email)) {
		return false
	}
	if len(allowDomains) > 0 && !domainAllowed(id.EmailDomain(), allowDomains) {
		return false
	}

	percent := s.rolloutPercent(flag)
	if percent >= 100 {
		return true
	}
	if percent <= 0 {
		return false
	}

	key := id.Email
	if key == "" {
		key = "guest"
	}
	return StableBucket(key) < percent
}

func (s *Service) rolloutPercent(flag string) int {
	raw := strings.TrimSpace(s.source.Get(segmentKey(flag, "ROLLOUT_PERCENT")))
	if raw == "" {
		return 100
	}
	percent, err := strconv.Atoi(raw)
	if err != nil {
		return 100
	}
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

func segmentKey(flag, suffix string) string {
	return "FEATURE_" + strings.ToUpper(flag) + "_" + suffix
}

func splitCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func anyRoleAllowed(roles, allowed []string) bool {
	for _, r := range roles {
		if contains(allowed, r) {
			return true
		}
	}
	return false
}

// domainAllowed matches the caller's email domain against the allow-list,
// accepting exact matches and subdomains ("eu.example.com" passes for
// "example.com").
func domainAllowed(domain string, allowed []string) bool {
	if domain == "" {
		return false
	}
	for _, d := range allowed {
		d = strings.ToLower(d)
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// StableBucket maps a caller key to a bucket in [0, 100). The first two bytes
// of the SHA-256 digest give a value in [0, 65535], scaled down to a
// percentage. The same key always lands in the same bucket, so a caller's
// rollout experience never flip-flops between requests.
func StableBucket(key string) int {
	hash := sha256.Sum256([]byte(key))
	v := int(hash[0])<<8 | int(hash[1])
	return v * 100 / 65535
}

// FallbackBucket is the non-cryptographic bucketing used where the SHA-256
// variant is unavailable (client-side mirrors). It distributes differently
// from StableBucket, so the two must not be mixed for one flag.
func FallbackBucket(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % 100)
}
