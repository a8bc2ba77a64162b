package redis

import (
	"context"
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE TRACKER
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrUserIDEmpty is returned when a user ID is empty.
	ErrUserIDEmpty = errors.New("presence: user ID cannot be empty")

	// ErrRoomEmpty is returned when a room name is empty.
	ErrRoomEmpty = errors.New("presence: room cannot be empty")
)

// PresenceInfo describes a connected client.
type PresenceInfo struct {
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// PresenceTracker tracks which clients are connected to the realtime
// layer and which rooms they occupy. Presence markers carry a TTL, so
// a client that vanishes without a clean disconnect expires on its own;
// room membership is cleaned up on disconnect or on the next read.
//
// Architecture:
//   - each connected client has a key "presence:{user_id}" with TTL
//   - each room has a set "presence:room:{room}" of member user IDs
type PresenceTracker struct {
	cache *Cache
	ttl   time.Duration
}

// NewPresenceTracker creates a new PresenceTracker.
func NewPresenceTracker(cache *Cache) *PresenceTracker {
	return &PresenceTracker{
		cache: cache,
		ttl:   TTLPresence,
	}
}

// MarkOnline records a client connection.
func (t *PresenceTracker) MarkOnline(ctx context.Context, userID, role string) error {
	if userID == "" {
		return ErrUserIDEmpty
	}

	now := time.Now().UTC()
	info := PresenceInfo{
		UserID:      userID,
		Role:        role,
		ConnectedAt: now,
		LastSeenAt:  now,
	}

	return t.cache.Set(ctx, PresenceKey(userID), info, t.ttl)
}

// Heartbeat refreshes a client's presence marker.
func (t *PresenceTracker) Heartbeat(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDEmpty
	}

	var info PresenceInfo
	if err := t.cache.Get(ctx, PresenceKey(userID), &info); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			// Marker expired; recreate it without a role.
			return t.MarkOnline(ctx, userID, "")
		}
		return err
	}

	info.LastSeenAt = time.Now().UTC()
	return t.cache.Set(ctx, PresenceKey(userID), info, t.ttl)
}

// MarkOffline removes a client's presence marker and its room
// memberships.
func (t *PresenceTracker) MarkOffline(ctx context.Context, userID string, rooms []string) error {
	if userID == "" {
		return ErrUserIDEmpty
	}

	for _, room := range rooms {
		if err := t.LeaveRoom(ctx, room, userID); err != nil {
			return err
		}
	}

	return t.cache.Delete(ctx, PresenceKey(userID))
}

// IsOnline reports whether a client has a live presence marker.
func (t *PresenceTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrUserIDEmpty
	}

	return t.cache.Exists(ctx, PresenceKey(userID))
}

// GetPresence returns a client's presence info, or ErrCacheMiss.
func (t *PresenceTracker) GetPresence(ctx context.Context, userID string) (*PresenceInfo, error) {
	if userID == "" {
		return nil, ErrUserIDEmpty
	}

	var info PresenceInfo
	if err := t.cache.Get(ctx, PresenceKey(userID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Room membership
// ─────────────────────────────────────────────────────────────────────────────

// JoinRoom adds a client to a room's member set.
func (t *PresenceTracker) JoinRoom(ctx context.Context, room, userID string) error {
	if room == "" {
		return ErrRoomEmpty
	}
	if userID == "" {
		return ErrUserIDEmpty
	}

	return t.cache.SAdd(ctx, PresenceRoomKey(room), userID)
}

// LeaveRoom removes a client from a room's member set.
func (t *PresenceTracker) LeaveRoom(ctx context.Context, room, userID string) error {
	if room == "" {
		return ErrRoomEmpty
	}
	if userID == "" {
		return ErrUserIDEmpty
	}

	return t.cache.SRem(ctx, PresenceRoomKey(room), userID)
}

// RoomMembers returns the user IDs in a room, dropping members whose
// presence marker has expired.
func (t *PresenceTracker) RoomMembers(ctx context.Context, room string) ([]string, error) {
	if room == "" {
		return nil, ErrRoomEmpty
	}

	members, err := t.cache.SMembers(ctx, PresenceRoomKey(room))
	if err != nil {
		return nil, err
	}

	alive := make([]string, 0, len(members))
	for _, userID := range members {
		online, err := t.cache.Exists(ctx, PresenceKey(userID))
		if err != nil {
			return nil, err
		}
		if online {
			alive = append(alive, userID)
			continue
		}
		// Stale member; drop it from the set.
		_ = t.cache.SRem(ctx, PresenceRoomKey(room), userID)
	}

	return alive, nil
}

// RoomSize returns the raw size of a room's member set.
func (t *PresenceTracker) RoomSize(ctx context.Context, room string) (int64, error) {
	if room == "" {
		return 0, ErrRoomEmpty
	}

	return t.cache.SCard(ctx, PresenceRoomKey(room))
}
