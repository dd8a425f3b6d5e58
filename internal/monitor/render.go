package monitor

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader/types"
)

// LineWidth is the minimum width of a status line, so that a shorter line
// fully covers the previous one.
const LineWidth = 80

// StatusLine returns text padded to LineWidth and prefixed with a carriage
// return. There is no trailing newline.
func StatusLine(text string) string {
	return fmt.Sprintf("\r%-*s", LineWidth, text)
}

func DownloadingLine(item types.DownloadItem) string {
	return fmt.Sprintf("Progress: %.1f%% | Speed: %s | Peers: %d | Size: %s",
		item.Progress, speed(item.DownloadSpeed), item.Connections, size(item.Size))
}

func SeedingLine(item types.DownloadItem) string {
	return fmt.Sprintf("Seeding: Uploaded %s | Speed: %s", size(item.UploadedSize), speed(item.UploadSpeed))
}

func size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func speed(bps int64) string {
	return size(bps) + "/s"
}
