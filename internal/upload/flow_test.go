package upload

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"docuscan/internal/capture"
	"docuscan/internal/model"
)

// gatedUploader blocks each call until released, counting calls.
type gatedUploader struct {
	calls   atomic.Int64
	entered chan struct{}
	release chan struct{}
	err     error
}

func newGatedUploader() *gatedUploader {
	return &gatedUploader{
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (u *gatedUploader) Upload(ctx context.Context, filename string, data []byte) (model.UploadResponse, error) {
	u.calls.Add(1)
	u.entered <- struct{}{}
	<-u.release
	if u.err != nil {
		return model.UploadResponse{}, u.err
	}
	return model.UploadResponse{Success: true, Message: "processed"}, nil
}

// plainUploader resolves immediately.
type plainUploader struct {
	calls atomic.Int64
	err   error
}

func (u *plainUploader) Upload(ctx context.Context, filename string, data []byte) (model.UploadResponse, error) {
	u.calls.Add(1)
	if u.err != nil {
		return model.UploadResponse{}, u.err
	}
	return model.UploadResponse{Success: true, Message: "processed"}, nil
}

func selectedController(t *testing.T) *capture.Controller {
	t.Helper()
	c := capture.NewController(nil)
	if err := c.SelectFile("card.jpg", []byte("jpeg-bytes")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	return c
}

func TestSubmitWithoutSourceIsLocal(t *testing.T) {
	t.Parallel()

	uploader := &plainUploader{}
	flow := NewFlow(uploader, capture.NewController(nil), time.Minute)

	_, err := flow.Submit(context.Background())
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("Submit error = %v, want ErrNoSource", err)
	}
	if uploader.calls.Load() != 0 {
		t.Errorf("validation failure issued %d network calls, want 0", uploader.calls.Load())
	}
}

func TestSecondSubmitWhileBusyIsRejected(t *testing.T) {
	t.Parallel()

	uploader := newGatedUploader()
	flow := NewFlow(uploader, selectedController(t), time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := flow.Submit(context.Background())
		done <- err
	}()

	// Wait until the first submission is in flight.
	select {
	case <-uploader.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first submission")
	}
	if !flow.Busy() {
		t.Error("Busy() = false while a submission is outstanding")
	}

	_, err := flow.Submit(context.Background())
	if !errors.Is(err, ErrInFlight) {
		t.Fatalf("second Submit error = %v, want ErrInFlight", err)
	}

	close(uploader.release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if got := uploader.calls.Load(); got != 1 {
		t.Errorf("uploader called %d times, want exactly 1", got)
	}
	if flow.Busy() {
		t.Error("Busy() = true after the submission resolved")
	}
}

func TestFailureLeavesSourceIntact(t *testing.T) {
	t.Parallel()

	uploader := &plainUploader{err: errors.New("service rejected the document")}
	controller := selectedController(t)
	flow := NewFlow(uploader, controller, time.Minute)

	_, err := flow.Submit(context.Background())
	if err == nil {
		t.Fatal("expected upload failure")
	}
	if flow.LastError() != "service rejected the document" {
		t.Errorf("LastError = %q, want the failure message", flow.LastError())
	}
	if _, ok := controller.Source(); !ok {
		t.Error("failure must leave the selected source so the operator can retry")
	}

	// Retry succeeds without re-selecting.
	uploader.err = nil
	if _, err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
}

func TestSuccessClearsSourceAfterDelay(t *testing.T) {
	t.Parallel()

	uploader := &plainUploader{}
	controller := selectedController(t)
	flow := NewFlow(uploader, controller, 42*time.Millisecond)

	var gotDelay time.Duration
	flow.afterFunc = func(d time.Duration, f func()) *time.Timer {
		gotDelay = d
		f() // run the clear immediately for the test
		return nil
	}

	resp, err := flow.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !resp.Success {
		t.Errorf("Submit response = %+v, want success", resp)
	}
	if gotDelay != 42*time.Millisecond {
		t.Errorf("clear scheduled after %v, want 42ms", gotDelay)
	}
	if _, ok := controller.Source(); ok {
		t.Error("source should be cleared after the display delay")
	}
	if result, ok := flow.Result(); !ok || result.Message != "processed" {
		t.Errorf("Result = %+v, %v; want processed result", result, ok)
	}
}
