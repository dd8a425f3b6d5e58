// Package testutil provides testing utilities shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader/types"
)

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a no-op logger for tests that don't need output.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// ErrUnavailable mimics aria2c not listening yet.
var ErrUnavailable = errors.New("dial tcp 127.0.0.1:6800: connect: connection refused")

// AddCall records one AddMagnet or AddTorrentFile call.
type AddCall struct {
	Method string // "magnet" or "torrent"
	Source string
	Dir    string
}

// FakeEngine is an in-memory types.Client. Each GID has a script of
// snapshots; Get walks the script and then keeps returning the last entry.
type FakeEngine struct {
	mu sync.Mutex

	// ListFailures is how many List calls fail before List succeeds.
	// Negative means List always fails.
	ListFailures int
	ListErr      error // returned by failing List calls, ErrUnavailable when nil
	AddErr       error
	GetErr       error
	NextGID      string

	listCalls int
	adds      []AddCall
	scripts   map[string][]types.DownloadItem
	gets      map[string]int
	closed    bool
}

var _ types.Client = (*FakeEngine)(nil)

// NewFakeEngine returns an engine that will hand out gid on the next add.
func NewFakeEngine(gid string) *FakeEngine {
	return &FakeEngine{
		NextGID: gid,
		scripts: make(map[string][]types.DownloadItem),
		gets:    make(map[string]int),
	}
}

// Script sets the snapshots returned for gid.
func (f *FakeEngine) Script(gid string, items ...types.DownloadItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range items {
		items[i].ID = gid
	}
	f.scripts[gid] = items
}

func (f *FakeEngine) List(ctx context.Context) ([]types.DownloadItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.ListFailures < 0 || f.listCalls <= f.ListFailures {
		if f.ListErr != nil {
			return nil, f.ListErr
		}
		return nil, ErrUnavailable
	}
	return []types.DownloadItem{}, nil
}

func (f *FakeEngine) Version(ctx context.Context) (string, error) {
	return "1.37.0", nil
}

func (f *FakeEngine) AddMagnet(ctx context.Context, magnetURI string, opts *types.AddOptions) (string, error) {
	return f.add("magnet", magnetURI, opts)
}

func (f *FakeEngine) AddTorrentFile(ctx context.Context, path string, opts *types.AddOptions) (string, error) {
	return f.add("torrent", path, opts)
}

func (f *FakeEngine) add(method, source string, opts *types.AddOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := AddCall{Method: method, Source: source}
	if opts != nil {
		call.Dir = opts.DownloadDir
	}
	f.adds = append(f.adds, call)
	if f.AddErr != nil {
		return "", f.AddErr
	}
	return f.NextGID, nil
}

func (f *FakeEngine) Get(ctx context.Context, id string) (*types.DownloadItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	script, ok := f.scripts[id]
	if !ok || len(script) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	n := f.gets[id]
	f.gets[id]++
	if n >= len(script) {
		n = len(script) - 1
	}
	item := script[n]
	return &item, nil
}

func (f *FakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// ListCalls returns how many times List was called.
func (f *FakeEngine) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// Adds returns the recorded add calls.
func (f *FakeEngine) Adds() []AddCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AddCall(nil), f.adds...)
}

// Gets returns how many times Get was called for id.
func (f *FakeEngine) Gets(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[id]
}

func (f *FakeEngine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Downloading returns a snapshot of an active, incomplete task.
func Downloading(progress float64, size int64) types.DownloadItem {
	return types.DownloadItem{
		Name:          "ubuntu-24.04-desktop-amd64.iso",
		Status:        types.StatusDownloading,
		Progress:      progress,
		Size:          size,
		DownloadSpeed: 1 << 20,
		Connections:   7,
		Seeders:       2,
	}
}

// Seeding returns a snapshot of a finished task that is uploading.
func Seeding(uploaded int64, size int64) types.DownloadItem {
	return types.DownloadItem{
		Name:         "ubuntu-24.04-desktop-amd64.iso",
		Status:       types.StatusSeeding,
		Progress:     100,
		Size:         size,
		UploadedSize: uploaded,
		UploadSpeed:  256 << 10,
		Connections:  3,
		IsSeeder:     true,
	}
}
