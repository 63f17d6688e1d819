// Package capture manages the camera device lifecycle and produces an
// uploadable image blob from either a picked file or a live capture.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/google/uuid"
)

// State of the controller. Exactly one source can be active at a time.
type State int

const (
	StateIdle State = iota
	StateFileSelected
	StateCameraActive
	StateCaptured
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFileSelected:
		return "file-selected"
	case StateCameraActive:
		return "camera-active"
	case StateCaptured:
		return "captured"
	}
	return "unknown"
}

// SourceKind tags where a blob came from.
type SourceKind string

const (
	SourceFile   SourceKind = "file"
	SourceCamera SourceKind = "camera"
)

// Source is the uploadable blob with its synthesized file name.
type Source struct {
	Kind SourceKind
	Name string
	Data []byte
}

// Still frames are re-encoded at this JPEG quality.
const jpegQuality = 95

var (
	// ErrNotActive is returned when a camera operation needs a live
	// stream and none is open.
	ErrNotActive = errors.New("capture: camera not active")

	// ErrCameraBusy is returned when starting the camera from a state
	// that is not idle; callers reset first.
	ErrCameraBusy = errors.New("capture: controller not idle")
)

// Controller owns at most one device handle at a time. Every transition
// that leaves the camera-active state releases the device exactly once.
type Controller struct {
	mu     sync.Mutex
	camera Camera
	state  State
	device Device
	source *Source
}

// NewController creates an idle controller. camera may be nil when no
// camera is configured; file selection still works.
func NewController(camera Camera) *Controller {
	return &Controller{camera: camera, state: StateIdle}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Source returns the active source, if any.
func (c *Controller) Source() (Source, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		return Source{}, false
	}
	return *c.source, true
}

// SelectFile makes a picked file the active source, discarding any
// previous preview. An open camera device is released first so the
// stream is never leaked behind a file selection.
func (c *Controller) SelectFile(name string, data []byte) error {
	if name == "" || len(data) == 0 {
		return errors.New("capture: file name and contents required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.releaseLocked()
	c.source = &Source{Kind: SourceFile, Name: name, Data: data}
	c.state = StateFileSelected
	return err
}

// StartCamera acquires the camera stream and moves to camera-active.
// On acquisition failure the controller stays idle.
func (c *Controller) StartCamera(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrCameraBusy
	}
	if c.camera == nil {
		return errors.New("capture: no camera configured")
	}
	device, err := c.camera.Open(ctx)
	if err != nil {
		return fmt.Errorf("capture: start camera: %w", err)
	}
	c.device = device
	c.state = StateCameraActive
	return nil
}

// Preview returns the current live frame. Only valid while the camera
// is active.
func (c *Controller) Preview(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCameraActive {
		return nil, ErrNotActive
	}
	return c.device.ReadFrame(ctx)
}

// CaptureFrame rasterizes the current live frame into a JPEG blob with
// a unique synthesized name, releases the device, and moves to
// captured. If no live frame can be read the device stays open and the
// controller stays camera-active.
func (c *Controller) CaptureFrame(ctx context.Context) (Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCameraActive {
		return Source{}, ErrNotActive
	}

	frame, err := c.device.ReadFrame(ctx)
	if err != nil {
		return Source{}, fmt.Errorf("capture: read frame: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Source{}, fmt.Errorf("capture: encode frame: %w", err)
	}

	// The device is done once a still exists; a close failure does not
	// undo the capture.
	_ = c.releaseLocked()
	c.source = &Source{
		Kind: SourceCamera,
		Name: "capture-" + uuid.NewString() + ".jpg",
		Data: buf.Bytes(),
	}
	c.state = StateCaptured
	return *c.source, nil
}

// StopCamera releases the device without producing output and returns
// to idle. A no-op outside camera-active.
func (c *Controller) StopCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCameraActive {
		return nil
	}
	err := c.releaseLocked()
	c.state = StateIdle
	return err
}

// Reset releases any held device, discards any source and preview, and
// returns to idle. Safe from any state; used on teardown.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.releaseLocked()
	c.source = nil
	c.state = StateIdle
	return err
}

// releaseLocked closes the device at most once. Callers hold c.mu.
func (c *Controller) releaseLocked() error {
	if c.device == nil {
		return nil
	}
	device := c.device
	c.device = nil
	if err := device.Close(); err != nil {
		return fmt.Errorf("capture: release device: %w", err)
	}
	return nil
}
