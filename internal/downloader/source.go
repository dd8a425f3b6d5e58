package downloader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// ErrInvalidSource is returned for input that is neither a magnet link nor
// a .torrent file path.
var ErrInvalidSource = errors.New("invalid source: expected a magnet link or a .torrent file")

// DefaultDownloadDir is used when the user leaves the folder prompt empty.
const DefaultDownloadDir = "./downloads"

const (
	magnetScheme     = "magnet:"
	torrentExtension = ".torrent"
)

// SourceKind tells how a source is handed to the engine.
type SourceKind int

const (
	SourceMagnet SourceKind = iota + 1
	SourceTorrentFile
)

func (k SourceKind) String() string {
	switch k {
	case SourceMagnet:
		return "magnet"
	case SourceTorrentFile:
		return "torrent file"
	default:
		return "unknown"
	}
}

// Source is what the user asked to download.
type Source struct {
	Kind  SourceKind
	Value string
}

// Classify decides what kind of source raw is. The magnet scheme takes
// precedence over the file extension.
func Classify(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)

	switch {
	case strings.HasPrefix(lower, magnetScheme):
		return Source{Kind: SourceMagnet, Value: raw}, nil
	case strings.HasSuffix(lower, torrentExtension):
		return Source{Kind: SourceTorrentFile, Value: raw}, nil
	default:
		return Source{}, fmt.Errorf("%w: %q", ErrInvalidSource, raw)
	}
}

// SourceInfo is what can be learned about a source without the engine.
type SourceInfo struct {
	Name     string
	InfoHash string
	Length   int64 // 0 when unknown (magnets)
	Trackers int
}

// Describe parses the source locally. The engine remains the authority on
// whether a source is usable, so callers treat errors as informational.
func Describe(src Source) (SourceInfo, error) {
	switch src.Kind {
	case SourceMagnet:
		m, err := metainfo.ParseMagnetUri(src.Value)
		if err != nil {
			return SourceInfo{}, fmt.Errorf("parse magnet: %w", err)
		}
		return SourceInfo{
			Name:     m.DisplayName,
			InfoHash: m.InfoHash.HexString(),
			Trackers: len(m.Trackers),
		}, nil

	case SourceTorrentFile:
		mi, err := metainfo.LoadFromFile(src.Value)
		if err != nil {
			return SourceInfo{}, fmt.Errorf("load torrent file: %w", err)
		}
		info, err := mi.UnmarshalInfo()
		if err != nil {
			return SourceInfo{}, fmt.Errorf("decode torrent info: %w", err)
		}

		trackers := 0
		for _, tier := range mi.UpvertedAnnounceList() {
			trackers += len(tier)
		}

		return SourceInfo{
			Name:     info.Name,
			InfoHash: mi.HashInfoBytes().HexString(),
			Length:   info.TotalLength(),
			Trackers: trackers,
		}, nil
	}

	return SourceInfo{}, ErrInvalidSource
}
