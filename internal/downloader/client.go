// Package downloader submits sources to the engine and tracks the resulting
// task.
package downloader

import (
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader/aria2"
	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader/types"
)

// NewClient creates a control client for the engine.
func NewClient(cfg *types.ClientConfig) types.Client {
	return aria2.NewFromConfig(cfg)
}
