package redis

import "strings"

const defaultNamespace = "sf"

// Keyspace builds colon separated keys under one namespace.
type Keyspace string

func (k Keyspace) join(parts ...string) string {
	ns := strings.TrimSpace(string(k))
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey holds a replayable response or a consumer claim.
func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.join("idempotency", scope, id)
}

func (k Keyspace) RateLimitKey(scope string) string {
	return k.join("rate_limit", scope)
}

// AccessSessionKey maps an admin access token id to its refresh token.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.join("session", "access", accessID)
}

func (k Keyspace) LockKey(scope, id string) string {
	return k.join("lock", scope, id)
}
