package aria2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader/types"
)

func TestClient_Version(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "aria2.getVersion" {
			t.Errorf("expected method aria2.getVersion, got %s", req.Method)
		}

		if len(req.Params) != 1 || req.Params[0] != "token:mysecret" {
			t.Errorf("expected token param, got %v", req.Params)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"version":         "1.37.0",
				"enabledFeatures": []string{"BitTorrent"},
			},
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "mysecret")

	version, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.37.0", version)
}

func TestClient_NoSecret(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if len(req.Params) != 0 {
			t.Errorf("expected no params when no secret, got %v", req.Params)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"version": "1.37.0"},
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "")

	_, err := client.Version(context.Background())
	require.NoError(t, err)
}

func TestClient_AuthFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]any{
				"code":    1,
				"message": "Unauthorized",
			},
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "wrongsecret")

	_, err := client.List(context.Background())
	if !errors.Is(err, types.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestClient_RPCError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]any{
				"code":    1,
				"message": "Bad magnet",
			},
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "")

	_, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:broken", nil)
	var rpcErr *types.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, 1, rpcErr.Code)
	assert.Equal(t, "Bad magnet", rpcErr.Message)
}

func TestClient_List(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		var result []any
		switch req.Method {
		case "aria2.tellActive":
			result = []any{
				map[string]any{
					"gid":             "a1b2c3d4e5f60001",
					"status":          "active",
					"totalLength":     "1073741824",
					"completedLength": "536870912",
					"downloadSpeed":   "1048576",
					"uploadSpeed":     "524288",
					"connections":     "12",
					"dir":             "/downloads",
					"bittorrent": map[string]any{
						"info": map[string]any{"name": "ubuntu-24.04-desktop-amd64.iso"},
					},
					"infoHash": "abcdef1234567890abcd",
				},
				map[string]any{
					"gid":             "a1b2c3d4e5f60002",
					"status":          "active",
					"totalLength":     "2147483648",
					"completedLength": "2147483648",
					"uploadLength":    "4096",
					"downloadSpeed":   "0",
					"uploadSpeed":     "262144",
					"seeder":          "true",
					"dir":             "/downloads",
				},
			}
		case "aria2.tellWaiting":
			result = []any{
				map[string]any{
					"gid":             "a1b2c3d4e5f60003",
					"status":          "waiting",
					"totalLength":     "524288000",
					"completedLength": "0",
				},
			}
		case "aria2.tellStopped":
			result = []any{
				map[string]any{
					"gid":             "a1b2c3d4e5f60004",
					"status":          "complete",
					"totalLength":     "104857600",
					"completedLength": "104857600",
				},
			}
		default:
			t.Errorf("unexpected method: %s", req.Method)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "secret")

	items, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 4)

	for _, item := range items {
		switch item.ID {
		case "a1b2c3d4e5f60001":
			assert.Equal(t, "ubuntu-24.04-desktop-amd64.iso", item.Name)
			assert.Equal(t, types.StatusDownloading, item.Status)
			assert.Equal(t, int64(1073741824), item.Size)
			assert.Equal(t, int64(1048576), item.DownloadSpeed)
			assert.Equal(t, 12, item.Connections)
			assert.InDelta(t, 50.0, item.Progress, 0.001)
			assert.False(t, item.Complete())
		case "a1b2c3d4e5f60002":
			assert.Equal(t, types.StatusSeeding, item.Status)
			assert.Equal(t, int64(4096), item.UploadedSize)
			assert.True(t, item.IsSeeder)
			assert.True(t, item.Complete())
		case "a1b2c3d4e5f60003":
			assert.Equal(t, types.StatusQueued, item.Status)
		case "a1b2c3d4e5f60004":
			assert.Equal(t, types.StatusCompleted, item.Status)
			assert.True(t, item.Complete())
		}
	}
}

func TestClient_List_Empty(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  []any{},
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "secret")

	items, err := client.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestClient_List_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client := setupTestClient(server, "")
	server.Close()

	_, err := client.List(context.Background())
	assert.Error(t, err)
}

func TestClient_AddMagnet(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "aria2.addUri" {
			t.Errorf("expected method aria2.addUri, got %s", req.Method)
		}

		// params: [token, [uris], {options}]
		if len(req.Params) != 3 {
			t.Errorf("expected 3 params (token, uris, options), got %d", len(req.Params))
			return
		}

		uris, ok := req.Params[1].([]any)
		if !ok || len(uris) != 1 || uris[0] != "magnet:?xt=urn:btih:abc123" {
			t.Errorf("expected the magnet URI, got %v", req.Params[1])
		}

		opts, ok := req.Params[2].(map[string]any)
		if !ok {
			t.Errorf("expected options map, got %T", req.Params[2])
		}
		if opts["dir"] != "./downloads" {
			t.Errorf("expected dir './downloads', got %v", opts["dir"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "c3d4e5f600000003",
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "secret")

	gid, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:abc123", &types.AddOptions{DownloadDir: "./downloads"})
	require.NoError(t, err)
	assert.Equal(t, "c3d4e5f600000003", gid)
}

func TestClient_AddTorrentFile(t *testing.T) {
	content := []byte("d4:infod4:name4:testee")
	path := filepath.Join(t.TempDir(), "test.torrent")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "aria2.addTorrent" {
			t.Errorf("expected method aria2.addTorrent, got %s", req.Method)
		}

		// params: [b64, [uris], {options}]
		if len(req.Params) != 3 {
			t.Errorf("expected 3 params, got %d", len(req.Params))
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(req.Params[0].(string))
		if err != nil || string(decoded) != string(content) {
			t.Errorf("torrent content mismatch: %q", decoded)
		}

		opts, _ := req.Params[2].(map[string]any)
		if opts["dir"] != "/data" {
			t.Errorf("expected dir '/data', got %v", opts["dir"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "d4e5f60000000004",
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "")

	gid, err := client.AddTorrentFile(context.Background(), path, &types.AddOptions{DownloadDir: "/data"})
	require.NoError(t, err)
	assert.Equal(t, "d4e5f60000000004", gid)
}

func TestClient_AddTorrentFile_Missing(t *testing.T) {
	client := NewFromConfig(&types.ClientConfig{Host: "127.0.0.1", Port: 1})

	_, err := client.AddTorrentFile(context.Background(), filepath.Join(t.TempDir(), "nope.torrent"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClient_Get(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "aria2.tellStatus" {
			t.Errorf("expected method aria2.tellStatus, got %s", req.Method)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"gid":             "a1b2c3d4e5f60001",
				"status":          "complete",
				"totalLength":     "16384",
				"completedLength": "16384",
				"followedBy":      []any{"b2c3d4e5f6000002"},
				"dir":             "/downloads",
				"bittorrent": map[string]any{
					"info": map[string]any{"name": "[METADATA]Some.Linux.Iso"},
				},
			},
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "secret")

	item, err := client.Get(context.Background(), "a1b2c3d4e5f60001")
	require.NoError(t, err)

	assert.Equal(t, "a1b2c3d4e5f60001", item.ID)
	assert.Equal(t, "[METADATA]Some.Linux.Iso", item.Name)
	assert.Equal(t, types.StatusCompleted, item.Status)
	assert.Equal(t, []string{"b2c3d4e5f6000002"}, item.FollowedBy)
}

func TestClient_Get_FinishedMetadataIsNotSeeding(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"gid":             "a1b2c3d4e5f60001",
				"status":          "active",
				"totalLength":     "31235",
				"completedLength": "31235",
				"bittorrent":      map[string]any{},
				"files":           []any{map[string]any{"path": "[METADATA]ubuntu.iso"}},
			},
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "secret")

	item, err := client.Get(context.Background(), "a1b2c3d4e5f60001")
	require.NoError(t, err)

	assert.Equal(t, "[METADATA]ubuntu.iso", item.Name)
	assert.True(t, item.Metadata)
	assert.Equal(t, types.StatusDownloading, item.Status)
	assert.False(t, item.IsSeeder)
	assert.False(t, item.Complete())
}

func TestIsMetadata(t *testing.T) {
	tests := []struct {
		name   string
		status map[string]any
		item   string
		want   bool
	}{
		{"no info dictionary", map[string]any{"bittorrent": map[string]any{}}, "ubuntu.iso", true},
		{"metadata name", map[string]any{}, "[METADATA]ubuntu.iso", true},
		{"torrent", map[string]any{"bittorrent": map[string]any{"info": map[string]any{"name": "ubuntu.iso"}}}, "ubuntu.iso", false},
		{"plain download", map[string]any{}, "ubuntu.iso", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isMetadata(tt.status, tt.item))
		})
	}
}

func TestClient_ErrorItem(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"gid":             "a1b2c3d4e5f60001",
				"status":          "error",
				"totalLength":     "1000",
				"completedLength": "500",
				"errorCode":       "9",
				"errorMessage":    "not enough disk space",
			},
		})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := setupTestClient(server, "secret")

	item, err := client.Get(context.Background(), "a1b2c3d4e5f60001")
	require.NoError(t, err)

	assert.Equal(t, types.StatusError, item.Status)
	assert.Equal(t, "not enough disk space", item.Error)
	assert.Equal(t, "9", item.ErrorCode)
}

func TestClient_ExtractName_Fallback(t *testing.T) {
	client := NewFromConfig(&types.ClientConfig{})

	name := client.extractName(map[string]any{"gid": "abc123", "status": "active"})
	assert.Equal(t, "abc123", name)

	name = client.extractName(map[string]any{"status": "active"})
	assert.Equal(t, "unknown", name)

	name = client.extractName(map[string]any{
		"gid":   "abc123",
		"files": []any{map[string]any{"path": "[METADATA]ubuntu-24.04"}},
	})
	assert.Equal(t, "[METADATA]ubuntu-24.04", name)
}

func TestClient_WebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jsonrpc" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req rpcRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			// aria2 interleaves notifications with responses.
			conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"method":  "aria2.onDownloadStart",
				"params":  []any{map[string]any{"gid": "a1b2c3d4e5f60001"}},
			})
			conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result": map[string]any{
					"gid":             "a1b2c3d4e5f60001",
					"status":          "active",
					"totalLength":     "100",
					"completedLength": "25",
				},
			})
		}
	}))
	defer server.Close()

	host, _, _ := net.SplitHostPort(server.Listener.Addr().String())
	client := NewFromConfig(&types.ClientConfig{
		Host:      host,
		Port:      server.Listener.Addr().(*net.TCPAddr).Port,
		Transport: types.TransportWebSocket,
	})
	defer client.Close()

	for i := 0; i < 2; i++ {
		item, err := client.Get(context.Background(), "a1b2c3d4e5f60001")
		require.NoError(t, err)
		assert.InDelta(t, 25.0, item.Progress, 0.001)
	}
}

func TestClient_WebSocket_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	host, _, _ := net.SplitHostPort(server.Listener.Addr().String())
	port := server.Listener.Addr().(*net.TCPAddr).Port
	server.Close()

	client := NewFromConfig(&types.ClientConfig{Host: host, Port: port, Transport: types.TransportWebSocket})

	_, err := client.List(context.Background())
	assert.Error(t, err)
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status    string
		total     int64
		completed int64
		want      types.Status
	}{
		{"active", 100, 50, types.StatusDownloading},
		{"active", 100, 100, types.StatusSeeding},
		{"active", 0, 0, types.StatusDownloading},
		{"waiting", 100, 0, types.StatusQueued},
		{"paused", 100, 10, types.StatusPaused},
		{"error", 100, 10, types.StatusError},
		{"complete", 100, 100, types.StatusCompleted},
		{"removed", 100, 10, types.StatusRemoved},
		{"bogus", 0, 0, types.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, mapStatus(tt.status, tt.total, tt.completed))
		})
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func setupTestClient(server *httptest.Server, secret string) *Client {
	host, _, _ := net.SplitHostPort(server.Listener.Addr().String())
	port := server.Listener.Addr().(*net.TCPAddr).Port

	return NewFromConfig(&types.ClientConfig{
		Host:   host,
		Port:   port,
		Secret: secret,
	})
}
