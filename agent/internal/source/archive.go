package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/obsidianstack/winsight/agent/internal/config"
)

// defaultArchiveGlob selects event exports in a directory.
const defaultArchiveGlob = "*.xml*"

type archiveSource struct {
	src config.Source
}

func (s *archiveSource) ID() string { return s.src.ID }

// Collect reads every matching file and splits it into <Event> documents.
// The channel hint is the configured channel, else the file's base name.
// Unreadable files are logged and skipped.
func (s *archiveSource) Collect(ctx context.Context) (*Batch, error) {
	glob := s.src.Glob
	if glob == "" {
		glob = defaultArchiveGlob
	}
	files, err := expandPath(s.src.Path, glob)
	if err != nil {
		return nil, fmt.Errorf("archive %q: %w", s.src.ID, err)
	}

	b := &Batch{SourceID: s.src.ID}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		data, err := readAll(path)
		if err != nil {
			slog.Warn("source: archive file skipped", "source", s.src.ID, "path", path, "err", err)
			b.Skipped++
			continue
		}
		channel := s.src.Channel
		if channel == "" {
			channel = baseName(path)
		}
		for _, raw := range SplitEvents(data) {
			b.Records = append(b.Records, Record{Channel: channel, Raw: raw})
		}
	}
	return b, nil
}

func readAll(path string) (string, error) {
	rc, err := openFile(path)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SplitEvents returns each top-level <Event ...>...</Event> element of an
// export such as the output of `wevtutil qe /f:xml`. Text outside events and
// an unterminated trailing element are ignored.
func SplitEvents(data string) []string {
	var out []string
	for {
		start := indexEventOpen(data)
		if start < 0 {
			return out
		}
		rest := data[start:]
		end := strings.Index(rest, "</Event>")
		if end < 0 {
			return out
		}
		end += len("</Event>")
		out = append(out, rest[:end])
		data = rest[end:]
	}
}

// indexEventOpen finds "<Event" followed by a space or '>', skipping
// <Events>, <EventData>, <EventID> and the like.
func indexEventOpen(s string) int {
	off := 0
	for {
		i := strings.Index(s[off:], "<Event")
		if i < 0 {
			return -1
		}
		i += off
		next := i + len("<Event")
		if next < len(s) {
			switch s[next] {
			case ' ', '>', '\t', '\r', '\n':
				return i
			}
		}
		off = next
	}
}
