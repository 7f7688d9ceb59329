package domain

import (
	"slices"
	"strings"
)

const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeOfflineAccess = "offline_access"
	ScopeMeetingsRead  = "meetings:read"
	ScopeTasksRead     = "tasks:read"
	ScopeTasksWrite    = "tasks:write"
)

// RecognizedScopes is the closed set of scopes this server grants, in
// display order.
var RecognizedScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeOfflineAccess,
	ScopeMeetingsRead,
	ScopeTasksRead,
	ScopeTasksWrite,
}

// DefaultScopes are granted when a request names none.
var DefaultScopes = []string{ScopeOpenID, ScopeProfile}

var scopeDescriptions = map[string]string{
	ScopeOpenID:        "Sign you in with your account",
	ScopeProfile:       "See your name and profile picture",
	ScopeEmail:         "See your email address",
	ScopeOfflineAccess: "Stay connected while you are away",
	ScopeMeetingsRead:  "Read your Zoom meetings",
	ScopeTasksRead:     "Read your Asana tasks",
	ScopeTasksWrite:    "Create and update your Asana tasks",
}

func IsRecognizedScope(s string) bool {
	_, ok := scopeDescriptions[s]
	return ok
}

// DescribeScope returns the human readable text shown on a consent screen.
func DescribeScope(s string) string {
	if d, ok := scopeDescriptions[s]; ok {
		return d
	}
	return s
}

// ParseScope splits a space-delimited scope string, dropping duplicates and
// keeping first-seen order.
func ParseScope(raw string) []string {
	return DedupeScopes(strings.Fields(raw))
}

func FormatScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

func DedupeScopes(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// IntersectScopes keeps the order of a.
func IntersectScopes(a, b []string) []string {
	var out []string
	for _, s := range DedupeScopes(a) {
		if slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}

// UnionScopes appends the members of b missing from a.
func UnionScopes(a, b []string) []string {
	return DedupeScopes(append(slices.Clone(a), b...))
}

func ContainsAllScopes(have, want []string) bool {
	for _, s := range want {
		if !slices.Contains(have, s) {
			return false
		}
	}
	return true
}
