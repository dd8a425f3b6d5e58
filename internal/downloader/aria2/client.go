// Package aria2 implements a JSON-RPC 2.0 client for aria2's control endpoint.
package aria2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader/types"
)

const metadataPrefix = "[METADATA]"

type Client struct {
	config    types.ClientConfig
	transport transport
}

var _ types.Client = (*Client)(nil)

func NewFromConfig(cfg *types.ClientConfig) *Client {
	c := &Client{config: *cfg}
	if cfg.Transport == types.TransportWebSocket {
		c.transport = newWSTransport(c.buildURL("ws"))
	} else {
		c.transport = newHTTPTransport(c.buildURL("http"))
	}
	return c
}

// List returns every task the engine knows about. It doubles as the health
// probe while the engine is starting up.
func (c *Client) List(ctx context.Context) ([]types.DownloadItem, error) {
	active, err := c.call(ctx, "aria2.tellActive", nil)
	if err != nil {
		return nil, fmt.Errorf("tellActive: %w", err)
	}

	waiting, err := c.call(ctx, "aria2.tellWaiting", []any{0, 1000})
	if err != nil {
		return nil, fmt.Errorf("tellWaiting: %w", err)
	}

	stopped, err := c.call(ctx, "aria2.tellStopped", []any{0, 1000})
	if err != nil {
		return nil, fmt.Errorf("tellStopped: %w", err)
	}

	var items []types.DownloadItem
	for _, list := range []any{active, waiting, stopped} {
		entries, ok := list.([]any)
		if !ok {
			continue
		}
		for _, entry := range entries {
			statusObj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			items = append(items, c.mapToDownloadItem(statusObj))
		}
	}

	if items == nil {
		items = []types.DownloadItem{}
	}

	return items, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "aria2.getVersion", nil)
	if err != nil {
		return "", err
	}

	versionMap, ok := result.(map[string]any)
	if !ok {
		return "", fmt.Errorf("invalid version response from aria2")
	}

	version, _ := versionMap["version"].(string)
	if version == "" {
		return "", fmt.Errorf("empty version response from aria2")
	}

	return version, nil
}

func (c *Client) AddMagnet(ctx context.Context, magnetURI string, opts *types.AddOptions) (string, error) {
	options := c.buildAddOptions(opts)
	resp, err := c.call(ctx, "aria2.addUri", []any{[]string{magnetURI}, options})
	if err != nil {
		return "", err
	}

	gid, ok := resp.(string)
	if !ok {
		return "", fmt.Errorf("unexpected response type for addUri")
	}

	return gid, nil
}

// AddTorrentFile uploads a local .torrent file. The engine may run as a
// different user or in another mount namespace, so the content is sent
// rather than the path.
func (c *Client) AddTorrentFile(ctx context.Context, path string, opts *types.AddOptions) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read torrent file: %w", err)
	}

	b64Content := base64.StdEncoding.EncodeToString(content)
	options := c.buildAddOptions(opts)

	resp, err := c.call(ctx, "aria2.addTorrent", []any{b64Content, []string{}, options})
	if err != nil {
		return "", err
	}

	gid, ok := resp.(string)
	if !ok {
		return "", fmt.Errorf("unexpected response type for addTorrent")
	}

	return gid, nil
}

func (c *Client) Get(ctx context.Context, id string) (*types.DownloadItem, error) {
	resp, err := c.call(ctx, "aria2.tellStatus", []any{id})
	if err != nil {
		return nil, err
	}

	statusObj, ok := resp.(map[string]any)
	if !ok {
		return nil, types.ErrNotFound
	}

	item := c.mapToDownloadItem(statusObj)
	return &item, nil
}

func (c *Client) Close() error {
	return c.transport.close()
}

func (c *Client) buildAddOptions(opts *types.AddOptions) map[string]any {
	options := make(map[string]any)
	if opts == nil {
		return options
	}

	if opts.DownloadDir != "" {
		options["dir"] = opts.DownloadDir
	}

	return options
}

func (c *Client) call(ctx context.Context, method string, extraParams []any) (any, error) {
	id := uuid.NewString()

	params := []any{}
	if c.config.Secret != "" {
		params = append(params, "token:"+c.config.Secret)
	}
	params = append(params, extraParams...)

	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.transport.roundTrip(ctx, id, jsonData)
	if err != nil {
		return nil, err
	}

	var rpcResp struct {
		Result any              `json:"result"`
		Error  *json.RawMessage `json:"error"`
	}

	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, c.parseRPCError(*rpcResp.Error)
	}

	return rpcResp.Result, nil
}

func (c *Client) parseRPCError(raw json.RawMessage) error {
	var errObj struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &errObj); err == nil {
		if errObj.Code == 1 && strings.Contains(strings.ToLower(errObj.Message), "unauthorized") {
			return types.ErrAuthFailed
		}
		return &types.RPCError{Code: errObj.Code, Message: errObj.Message}
	}
	return fmt.Errorf("RPC error: %s", string(raw))
}

func (c *Client) buildURL(scheme string) string {
	return fmt.Sprintf("%s://%s:%d/jsonrpc", scheme, c.config.Host, c.config.Port)
}

func (c *Client) mapToDownloadItem(status map[string]any) types.DownloadItem {
	gid := getString(status, "gid")
	totalLength := parseIntString(getString(status, "totalLength"))
	completedLength := parseIntString(getString(status, "completedLength"))
	uploadLength := parseIntString(getString(status, "uploadLength"))
	downloadSpeed := parseIntString(getString(status, "downloadSpeed"))
	uploadSpeed := parseIntString(getString(status, "uploadSpeed"))
	connections := parseIntString(getString(status, "connections"))
	numSeeders := parseIntString(getString(status, "numSeeders"))
	aria2Status := getString(status, "status")

	var progress float64
	if totalLength > 0 {
		progress = float64(completedLength) / float64(totalLength) * 100
	}

	name := c.extractName(status)
	metadata := isMetadata(status, name)

	mappedStatus := mapStatus(aria2Status, totalLength, completedLength)
	if metadata && mappedStatus == types.StatusSeeding {
		// The info dictionary is in, but the torrent itself has not started.
		mappedStatus = types.StatusDownloading
	}

	item := types.DownloadItem{
		ID:            gid,
		Name:          name,
		Status:        mappedStatus,
		Progress:      progress,
		Size:          totalLength,
		UploadedSize:  uploadLength,
		DownloadSpeed: downloadSpeed,
		UploadSpeed:   uploadSpeed,
		Connections:   int(connections),
		Seeders:       int(numSeeders),
		InfoHash:      getString(status, "infoHash"),
		DownloadDir:   getString(status, "dir"),
		FollowedBy:    getStrings(status, "followedBy"),
		IsSeeder:      getString(status, "seeder") == "true" && !metadata,
		Metadata:      metadata,
	}

	if mappedStatus == types.StatusError {
		item.Error = getString(status, "errorMessage")
		item.ErrorCode = getString(status, "errorCode")
	}

	return item
}

func (c *Client) extractName(status map[string]any) string {
	if bt, ok := status["bittorrent"].(map[string]any); ok {
		if info, ok := bt["info"].(map[string]any); ok {
			if name, ok := info["name"].(string); ok && name != "" {
				return name
			}
		}
	}

	// A magnet's metadata task has no info yet; its single file is named
	// "[METADATA]<dn or hash>".
	if files, ok := status["files"].([]any); ok && len(files) > 0 {
		if file, ok := files[0].(map[string]any); ok {
			if p := getString(file, "path"); p != "" {
				return filepath.Base(p)
			}
		}
	}

	gid := getString(status, "gid")
	if gid != "" {
		return gid
	}

	return "unknown"
}

// isMetadata reports whether status belongs to the task aria2 runs to fetch
// a magnet's info dictionary: a BitTorrent task without info, named
// "[METADATA]...".
func isMetadata(status map[string]any, name string) bool {
	if strings.HasPrefix(name, metadataPrefix) {
		return true
	}
	bt, ok := status["bittorrent"].(map[string]any)
	if !ok {
		return false
	}
	_, hasInfo := bt["info"]
	return !hasInfo
}

func mapStatus(aria2Status string, totalLength, completedLength int64) types.Status {
	switch aria2Status {
	case "active":
		if totalLength > 0 && completedLength >= totalLength {
			return types.StatusSeeding
		}
		return types.StatusDownloading
	case "waiting":
		return types.StatusQueued
	case "paused":
		return types.StatusPaused
	case "error":
		return types.StatusError
	case "complete":
		return types.StatusCompleted
	case "removed":
		return types.StatusRemoved
	default:
		return types.StatusUnknown
	}
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getStrings(m map[string]any, key string) []string {
	list, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func parseIntString(s string) int64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
