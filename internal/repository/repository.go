package repository

import (
	"context"
	"errors"
)

// ErrSlotEmpty is returned by Slot.Load when nothing has been stored yet.
var ErrSlotEmpty = errors.New("slot empty")

// Slot is a single named durable key holding one serialized cart.
type Slot interface {
	// Load returns the stored bytes, or ErrSlotEmpty when the key is absent.
	Load(ctx context.Context) ([]byte, error)

	// Store overwrites the key with data.
	Store(ctx context.Context, data []byte) error
}

// SlotProvider hands out the slot for a session and reports backend health.
type SlotProvider interface {
	// Open returns the slot for key. Opening never touches the backend.
	Open(key string) Slot

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Name identifies the backend in logs and health output.
	Name() string
}
