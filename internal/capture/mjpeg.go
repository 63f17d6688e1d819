package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// HTTPCamera opens an MJPEG stream (multipart/x-mixed-replace) from a
// network camera. Most document-station webcams and IP cameras expose
// one; each multipart part carries a single JPEG frame.
type HTTPCamera struct {
	URL  string
	HTTP *http.Client
}

// NewHTTPCamera creates a camera for the given stream URL. The HTTP
// client has no overall timeout because the stream stays open; the
// dial itself is bounded.
func NewHTTPCamera(streamURL string) *HTTPCamera {
	return &HTTPCamera{
		URL: streamURL,
		HTTP: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}
}

// Open connects to the stream and returns the device handle. The
// stream outlives ctx; it is torn down by Close, not by the caller's
// request context.
func (c *HTTPCamera) Open(ctx context.Context) (Device, error) {
	if c.URL == "" {
		return nil, errors.New("capture: camera stream url not configured")
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.URL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture: camera request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture: camera unreachable: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("capture: camera stream error: %s", resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("capture: not an mjpeg stream (content-type %q)", resp.Header.Get("Content-Type"))
	}

	return &mjpegDevice{
		cancel: cancel,
		body:   resp.Body,
		parts:  multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

type mjpegDevice struct {
	cancel context.CancelFunc
	body   io.ReadCloser
	parts  *multipart.Reader
}

// ReadFrame decodes the next frame from the stream.
func (d *mjpegDevice) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	part, err := d.parts.NextPart()
	if err != nil {
		return nil, fmt.Errorf("capture: read stream part: %w", err)
	}
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("capture: read frame body: %w", err)
	}
	frame, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("capture: decode frame: %w", err)
	}
	return frame, nil
}

// Close tears down the stream connection.
func (d *mjpegDevice) Close() error {
	d.cancel()
	return d.body.Close()
}
