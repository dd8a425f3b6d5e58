package downloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/downloader/types"
)

// ErrTaskFailed is returned by Refresh when the engine gave up on the task.
var ErrTaskFailed = errors.New("download failed")

// SubmissionError is returned when the engine rejects a source.
type SubmissionError struct {
	Source Source
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to add %s: %v", e.Source.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Submitter hands sources to the engine.
type Submitter struct {
	client types.Client
	logger zerolog.Logger
}

func NewSubmitter(client types.Client, logger zerolog.Logger) *Submitter {
	return &Submitter{
		client: client,
		logger: logger.With().Str("component", "submitter").Logger(),
	}
}

// Submit classifies raw and adds it to the engine with dir as the download
// directory. dir is passed through as is; callers substitute
// DefaultDownloadDir for empty input.
func (s *Submitter) Submit(ctx context.Context, raw, dir string) (*Task, error) {
	src, err := Classify(raw)
	if err != nil {
		return nil, err
	}

	if info, err := Describe(src); err != nil {
		s.logger.Debug().Err(err).Str("kind", src.Kind.String()).Msg("could not inspect source locally")
	} else {
		s.logger.Info().
			Str("name", info.Name).
			Str("infoHash", info.InfoHash).
			Int64("length", info.Length).
			Int("trackers", info.Trackers).
			Msg("submitting source")
	}

	opts := &types.AddOptions{DownloadDir: dir}

	var gid string
	switch src.Kind {
	case SourceMagnet:
		gid, err = s.client.AddMagnet(ctx, src.Value, opts)
	case SourceTorrentFile:
		gid, err = s.client.AddTorrentFile(ctx, src.Value, opts)
	}
	if err != nil {
		return nil, &SubmissionError{Source: src, Err: err}
	}

	task := &Task{
		id:     gid,
		source: src,
		client: s.client,
		logger: s.logger.With().Str("gid", gid).Logger(),
	}

	if err := task.Refresh(ctx); err != nil {
		return nil, &SubmissionError{Source: src, Err: err}
	}

	return task, nil
}

// Task is the single download the program follows.
type Task struct {
	id     string
	source Source
	item   types.DownloadItem
	client types.Client
	logger zerolog.Logger
}

// ID returns the engine GID currently followed.
func (t *Task) ID() string {
	return t.id
}

func (t *Task) Source() Source {
	return t.source
}

// Item returns the snapshot taken by the last Refresh.
func (t *Task) Item() types.DownloadItem {
	return t.item
}

func (t *Task) Name() string {
	return t.item.Name
}

func (t *Task) Complete() bool {
	return t.item.Complete()
}

// Refresh pulls the task status from the engine. A magnet first downloads
// only the metadata; aria2 then starts the real download under a new GID
// listed in followedBy, and the task moves over to it as soon as it appears.
func (t *Task) Refresh(ctx context.Context) error {
	item, err := t.client.Get(ctx, t.id)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", t.id, err)
	}

	if len(item.FollowedBy) > 0 {
		next := item.FollowedBy[0]
		t.logger.Info().Str("next", next).Msg("metadata received, following torrent download")
		t.id = next
		t.logger = t.logger.With().Str("gid", next).Logger()

		item, err = t.client.Get(ctx, t.id)
		if err != nil {
			return fmt.Errorf("refresh %s: %w", t.id, err)
		}
	}

	switch item.Status {
	case types.StatusError:
		return fmt.Errorf("%w: %s (code %s)", ErrTaskFailed, item.Error, item.ErrorCode)
	case types.StatusRemoved:
		return fmt.Errorf("%w: removed from engine", ErrTaskFailed)
	}

	t.item = *item
	return nil
}
