// Package types defines shared types for the aria2 control client.
package types

import (
	"context"
	"errors"
	"fmt"
)

// Common errors for the control client.
var (
	ErrAuthFailed = errors.New("authentication failed")
	ErrNotFound   = errors.New("download not found")
)

// RPCError is an error object returned by the engine.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error: %s (code %d)", e.Message, e.Code)
}

// Transport selects how RPC requests reach the engine.
type Transport string

const (
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

// ClientConfig holds connection settings for the engine's control endpoint.
type ClientConfig struct {
	Host      string
	Port      int
	Secret    string // empty means no token is sent
	Transport Transport
}

// Client is the subset of the engine's control interface used by this program.
type Client interface {
	// Connection
	List(ctx context.Context) ([]DownloadItem, error)
	Version(ctx context.Context) (string, error)

	// Download operations
	AddMagnet(ctx context.Context, magnetURI string, opts *AddOptions) (string, error)
	AddTorrentFile(ctx context.Context, path string, opts *AddOptions) (string, error)
	Get(ctx context.Context, id string) (*DownloadItem, error)

	Close() error
}

// AddOptions specifies options for adding a download.
type AddOptions struct {
	DownloadDir string // passed through verbatim as aria2's "dir" option
}

// DownloadItem is a snapshot of one engine task.
type DownloadItem struct {
	ID            string
	Name          string
	Status        Status
	Progress      float64 // 0-100
	Size          int64
	UploadedSize  int64
	DownloadSpeed int64 // bytes/sec
	UploadSpeed   int64 // bytes/sec
	Connections   int
	Seeders       int
	InfoHash      string
	DownloadDir   string
	FollowedBy    []string
	IsSeeder      bool
	Metadata      bool // magnet metadata fetch; its payload is not the download
	Error         string
	ErrorCode     string
}

// Complete reports whether the payload has been fully downloaded.
// A seeding BitTorrent task stays "active" in aria2, so the seeder flag
// is checked as well as the status. A metadata task, or one that handed
// over to a follow-up task, is never complete.
func (d *DownloadItem) Complete() bool {
	if d.Metadata || len(d.FollowedBy) > 0 {
		return false
	}
	switch d.Status {
	case StatusCompleted, StatusSeeding:
		return true
	}
	return d.IsSeeder
}

// Status represents the status of a download.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusSeeding     Status = "seeding"
	StatusError       Status = "error"
	StatusRemoved     Status = "removed"
	StatusUnknown     Status = "unknown"
)
