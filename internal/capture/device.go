package capture

import (
	"context"
	"image"
)

// Device is exclusive ownership of an acquired camera stream. ReadFrame
// returns the most recent live frame. Close releases the underlying
// stream; the Controller guarantees it is called exactly once on every
// path that leaves the camera-active state.
type Device interface {
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Camera acquires a Device. Acquisition can fail (device busy, stream
// unreachable, permission denied); the Controller stays idle in that
// case and surfaces the error.
type Camera interface {
	Open(ctx context.Context) (Device, error)
}
