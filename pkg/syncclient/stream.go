package syncclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/negarena/internal/domain"
)

// ErrStreamClosed is returned when the stream ends before the final snapshot.
var ErrStreamClosed = errors.New("stream closed before final snapshot")

// StreamOptions configures Follow.
type StreamOptions struct {
	Dialer *websocket.Dialer
	// OnUpdate runs after every frame that changed the view.
	OnUpdate func(*View)
}

// Follow subscribes to the push stream of session id and applies every
// snapshot frame to view until the final one arrives. The subscription starts
// at view.LastStep, so a view filled by an earlier poll or stream resumes
// where it stopped.
func (c *Client) Follow(ctx context.Context, id string, view *View, opts StreamOptions) error {
	target, err := c.streamURL(id, view.LastStep())
	if err != nil {
		return err
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != 0 {
			return &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
		}
		return fmt.Errorf("failed to dial stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var frame domain.StreamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if view.Final() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return ErrStreamClosed
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		switch frame.Type {
		case domain.StreamFrameError:
			return fmt.Errorf("stream error: %s", frame.Error)
		case domain.StreamFrameSnapshot:
			if frame.Snapshot == nil {
				continue
			}
			if view.Apply(frame.Snapshot) && opts.OnUpdate != nil {
				opts.OnUpdate(view)
			}
			if view.Final() {
				return nil
			}
		}
	}
}

func (c *Client) streamURL(id string, since int) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/sessions/" + url.PathEscape(id) + "/stream"
	if since > 0 {
		u.RawQuery = "since=" + strconv.Itoa(since)
	}
	return u.String(), nil
}
