package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/obsidianstack/winsight/agent/internal/config"
	"github.com/obsidianstack/winsight/agent/internal/ndjson"
)

type replaySource struct {
	src config.Source
}

func (s *replaySource) ID() string { return s.src.ID }

// Collect replays NDJSON exports. Records keep their own channel; the
// configured channel fills it in when empty.
func (s *replaySource) Collect(ctx context.Context) (*Batch, error) {
	files, err := expandPath(s.src.Path, s.src.Glob)
	if err != nil {
		return nil, fmt.Errorf("replay %q: %w", s.src.ID, err)
	}

	b := &Batch{SourceID: s.src.ID}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		rc, err := openFile(path)
		if err != nil {
			slog.Warn("source: replay file skipped", "source", s.src.ID, "path", path, "err", err)
			b.Skipped++
			continue
		}
		events, skipped, err := ndjson.Read(rc)
		rc.Close()
		b.Skipped += skipped
		if err != nil {
			slog.Warn("source: replay read stopped", "source", s.src.ID, "path", path, "err", err)
		}
		for i := range events {
			ev := events[i]
			if ev.Channel == "" {
				ev.Channel = s.src.Channel
			}
			b.Records = append(b.Records, Record{Channel: ev.Channel, Event: &ev})
		}
	}
	return b, nil
}
