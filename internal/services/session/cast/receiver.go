package cast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPReceiver drives a cast bridge that accepts JSON commands over HTTP,
// one endpoint per action under its base URL.
type HTTPReceiver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPReceiver(baseURL string, client *http.Client) *HTTPReceiver {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPReceiver{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type receiverReply struct {
	Accepted *bool  `json:"accepted"`
	Error    string `json:"error"`
}

func (h *HTTPReceiver) Load(ctx context.Context, mediaURL, title string, startAt float64) error {
	_, err := h.post(ctx, "load", map[string]any{"url": mediaURL, "title": title, "startTime": startAt})
	return err
}

func (h *HTTPReceiver) Play(ctx context.Context) error {
	_, err := h.post(ctx, "play", nil)
	return err
}

func (h *HTTPReceiver) Pause(ctx context.Context) error {
	_, err := h.post(ctx, "pause", nil)
	return err
}

func (h *HTTPReceiver) Seek(ctx context.Context, seconds float64) error {
	_, err := h.post(ctx, "seek", map[string]any{"time": seconds})
	return err
}

func (h *HTTPReceiver) SetVolume(ctx context.Context, volume float64) error {
	_, err := h.post(ctx, "volume", map[string]any{"volume": volume})
	return err
}

// SetRate reports false when the receiver rejects the rate or cannot be
// reached.
func (h *HTTPReceiver) SetRate(ctx context.Context, rate float64) bool {
	_, err := h.post(ctx, "rate", map[string]any{"rate": rate})
	return err == nil
}

func (h *HTTPReceiver) Stop(ctx context.Context) error {
	_, err := h.post(ctx, "stop", nil)
	return err
}

func (h *HTTPReceiver) post(ctx context.Context, action string, body map[string]any) (receiverReply, error) {
	var reply receiverReply
	payload, err := json.Marshal(body)
	if err != nil {
		return reply, err
	}
	url := h.baseURL + "/" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return reply, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return reply, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return reply, fmt.Errorf("receiver %s returned %d", action, resp.StatusCode)
	}
	if resp.ContentLength != 0 {
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil && err != io.EOF {
			return reply, fmt.Errorf("decode reply: %w", err)
		}
	}
	if reply.Accepted != nil && !*reply.Accepted {
		if reply.Error == "" {
			reply.Error = "rejected"
		}
		return reply, fmt.Errorf("receiver %s: %s", action, reply.Error)
	}
	return reply, nil
}
