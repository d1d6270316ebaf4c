// Package featureflags switches the notification side effects on, off, or on for a share of users.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strconv"
	"strings"
)

const (
	// FollowNotifications pushes a user_followed event to the followed author.
	FollowNotifications = "follow_notifications"
	// CommentNotifications pushes a comment_created event to the post author.
	CommentNotifications = "comment_notifications"
	// PostBroadcasts announces every new post to all connected sockets.
	PostBroadcasts = "post_broadcasts"
)

// Defaults apply when FEATURE_FLAGS does not mention a flag.
var Defaults = map[string]string{
	FollowNotifications:  "on",
	CommentNotifications: "on",
	PostBroadcasts:       "off",
}

// rule is a parsed flag value: the share of users, 0 to 100, the flag is on for.
type rule struct {
	percent int
}

// parseRule accepts on/true/1, off/false/0 and N%. Anything else is off.
func parseRule(value string) rule {
	switch value {
	case "on", "true", "1":
		return rule{percent: 100}
	case "off", "false", "0":
		return rule{}
	}
	raw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}
	}
	pct, err := strconv.Atoi(raw)
	if err != nil {
		return rule{}
	}
	return rule{percent: min(max(pct, 0), 100)}
}

// Manager holds the flags parsed from FEATURE_FLAGS, e.g. "follow_notifications=on,post_broadcasts=25%".
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw on top of Defaults. Malformed pairs are ignored.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule, len(Defaults))}
	for name, value := range Defaults {
		m.rules[name] = parseRule(value)
	}
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name, value = normalize(name), normalize(value)
		if !ok || name == "" || value == "" {
			continue
		}
		m.rules[name] = parseRule(value)
	}
	return m
}

// Enabled reports whether name is on for userID. A partial rollout picks the same users on
// every call and never includes anonymous viewers (userID 0).
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	switch {
	case !ok || r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// String lists every flag with its rollout, sorted by name, for the startup log.
func (m *Manager) String() string {
	if m == nil {
		return ""
	}
	names := make([]string, 0, len(m.rules))
	for name := range m.rules {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d%%", name, m.rules[name].percent))
	}
	return strings.Join(parts, ",")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
