package aria2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// transport carries one encoded JSON-RPC request and returns the raw response.
type transport interface {
	roundTrip(ctx context.Context, id string, payload []byte) ([]byte, error)
	close() error
}

type httpTransport struct {
	url        string
	httpClient *http.Client
}

func newHTTPTransport(url string) *httpTransport {
	return &httpTransport{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *httpTransport) roundTrip(ctx context.Context, _ string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

func (t *httpTransport) close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// wsTransport keeps a single WebSocket connection to aria2 and performs one
// request at a time on it. aria2 pushes notifications (aria2.onDownloadStart
// and friends) on the same socket; frames without a matching id are skipped.
type wsTransport struct {
	url    string
	dialer *websocket.Dialer
	conn   *websocket.Conn
}

func newWSTransport(url string) *wsTransport {
	return &wsTransport{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (t *wsTransport) roundTrip(ctx context.Context, id string, payload []byte) ([]byte, error) {
	if t.conn == nil {
		conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial websocket: %w", err)
		}
		t.conn = conn
	}

	defer unblockOnDone(ctx, t.conn)()

	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.reset()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	for {
		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			t.reset()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		var envelope struct {
			ID     *string `json:"id"`
			Method string  `json:"method"`
		}
		if err := json.Unmarshal(msg, &envelope); err != nil {
			t.reset()
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if envelope.ID == nil || *envelope.ID != id {
			continue
		}
		return msg, nil
	}
}

// unblockOnDone expires conn's deadlines when ctx ends, failing pending reads
// and writes. The returned release clears them again if that happened, so a
// connection that survives the call stays usable.
func unblockOnDone(ctx context.Context, conn *websocket.Conn) (release func()) {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
		_ = conn.SetWriteDeadline(time.Now())
		close(fired)
	})
	return func() {
		if stop() {
			return
		}
		<-fired
		_ = conn.SetReadDeadline(time.Time{})
		_ = conn.SetWriteDeadline(time.Time{})
	}
}

func (t *wsTransport) reset() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

func (t *wsTransport) close() error {
	if t.conn == nil {
		return nil
	}
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := t.conn.Close()
	t.conn = nil
	return err
}
