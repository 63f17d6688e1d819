// Package upload coordinates one document submission: the capture
// controller's active source goes through the gateway's upload
// operation, with a busy flag preventing duplicate in-flight
// submissions from the same form state.
package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"docuscan/internal/capture"
	"docuscan/internal/model"
)

// Uploader is the gateway's upload operation.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (model.UploadResponse, error)
}

var (
	// ErrNoSource is a local validation error: nothing selected, so
	// nothing is sent to the network.
	ErrNoSource = errors.New("upload: no document selected")

	// ErrInFlight rejects a second submission while one is
	// outstanding. No duplicate network call is issued.
	ErrInFlight = errors.New("upload: submission already in progress")
)

// Flow is a short-lived submission state machine. At most one upload is
// outstanding per Flow instance.
type Flow struct {
	mu         sync.Mutex
	uploader   Uploader
	controller *capture.Controller
	busy       bool
	result     *model.UploadResponse
	lastError  string

	clearDelay time.Duration
	afterFunc  func(time.Duration, func()) *time.Timer
}

// NewFlow creates a flow over the given controller. After a successful
// upload the selected source is cleared once clearDelay has elapsed,
// readying the form for the next document.
func NewFlow(uploader Uploader, controller *capture.Controller, clearDelay time.Duration) *Flow {
	return &Flow{
		uploader:   uploader,
		controller: controller,
		clearDelay: clearDelay,
		afterFunc:  time.AfterFunc,
	}
}

// Busy reports whether an upload is outstanding. The form's submit
// control is disabled while true.
func (f *Flow) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Result returns the last successful upload outcome, if any.
func (f *Flow) Result() (model.UploadResponse, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return model.UploadResponse{}, false
	}
	return *f.result, true
}

// LastError returns the message of the last failed submission.
func (f *Flow) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

// Submit uploads the active source. On failure the source stays
// selected so the operator can retry without re-selecting; on success
// the source is cleared after the display delay.
func (f *Flow) Submit(ctx context.Context) (model.UploadResponse, error) {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return model.UploadResponse{}, ErrInFlight
	}
	source, ok := f.controller.Source()
	if !ok {
		f.mu.Unlock()
		return model.UploadResponse{}, ErrNoSource
	}
	f.busy = true
	f.result = nil
	f.lastError = ""
	f.mu.Unlock()

	resp, err := f.uploader.Upload(ctx, source.Name, source.Data)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		f.lastError = err.Error()
		return model.UploadResponse{}, err
	}
	f.result = &resp
	f.afterFunc(f.clearDelay, func() { _ = f.controller.Reset() })
	return resp, nil
}
