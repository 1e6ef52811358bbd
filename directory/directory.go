// Package directory maps chat-channel identities to internal user ids.
package directory

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a channel identity has no mapping.
var ErrNotFound = errors.New("channel identity not mapped")

// Directory is the user directory lookup collaborator. LookupByChannel is the
// reverse lookup used for inbound routing; ChannelForUser is the forward
// lookup used for outbound delivery.
type Directory interface {
	LookupByChannel(ctx context.Context, channelID string) (string, error)
	ChannelForUser(ctx context.Context, userID string) (string, error)
	Link(ctx context.Context, channelID, userID string) error
}

// MemoryDirectory is an in-process Directory, seeded at startup and extended
// at runtime by completed link flows.
type MemoryDirectory struct {
	mu        sync.RWMutex
	byChannel map[string]string
	byUser    map[string]string
}

// NewMemoryDirectory creates a directory seeded with channel->user mappings.
func NewMemoryDirectory(seed map[string]string) *MemoryDirectory {
	d := &MemoryDirectory{
		byChannel: make(map[string]string, len(seed)),
		byUser:    make(map[string]string, len(seed)),
	}
	for channelID, userID := range seed {
		d.byChannel[channelID] = userID
		d.byUser[userID] = channelID
	}
	return d
}

func (d *MemoryDirectory) LookupByChannel(ctx context.Context, channelID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	userID, ok := d.byChannel[channelID]
	if !ok {
		return "", ErrNotFound
	}
	return userID, nil
}

func (d *MemoryDirectory) ChannelForUser(ctx context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	channelID, ok := d.byUser[userID]
	if !ok {
		return "", ErrNotFound
	}
	return channelID, nil
}

func (d *MemoryDirectory) Link(ctx context.Context, channelID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byChannel[channelID] = userID
	d.byUser[userID] = channelID
	return nil
}
