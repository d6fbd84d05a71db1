package source

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/config"
	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/agent/internal/rules"
	"github.com/obsidianstack/winsight/pkg/types"
)

// LogFileProvider is the provider name of events synthesized from log lines.
const LogFileProvider = "LogFile"

// Limits for one logfile Collect call.
const (
	maxLogRecords = 1000
	maxSamples    = 3
	maxLineBytes  = 1 << 20
)

type logFileSource struct {
	src   config.Source
	terms []string
	res   []*regexp.Regexp

	mu sync.Mutex
	// firstSeen holds the time each matched line was first collected, keyed
	// by path, line number and line text. It only keeps lines present in the
	// latest scan.
	firstSeen map[string]time.Time
}

func newLogFileSource(src config.Source, patterns []string) *logFileSource {
	terms, res := rules.CompilePatterns(patterns)
	return &logFileSource{src: src, terms: terms, res: res, firstSeen: make(map[string]time.Time)}
}

func (s *logFileSource) ID() string { return s.src.ID }

// Collect scans every matching file line by line. Each line that matches any
// pattern becomes a warning-level event with provider LogFile and the file's
// base name as channel. Its time is the file's modification time when the line
// was first collected and stays fixed afterwards, so a line keeps one identity
// while the file grows. FileTerms reports, per pattern, the number of files
// and lines it matched plus a few samples.
func (s *logFileSource) Collect(ctx context.Context) (*Batch, error) {
	b := &Batch{SourceID: s.src.ID}
	if len(s.res) == 0 {
		return b, nil
	}
	files, err := expandPath(s.src.Path, s.src.Glob)
	if err != nil {
		return nil, fmt.Errorf("logfile %q: %w", s.src.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]time.Time, len(s.firstSeen))

	stats := make([]types.FileTerm, len(s.terms))
	for i, t := range s.terms {
		stats[i].Term = t
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		if err := s.scanFile(path, b, stats, seen); err != nil {
			slog.Warn("source: log file skipped", "source", s.src.ID, "path", path, "err", err)
			b.Skipped++
		}
	}

	s.firstSeen = seen

	for _, st := range stats {
		if st.Files > 0 {
			b.FileTerms = append(b.FileTerms, st)
		}
	}
	sort.SliceStable(b.FileTerms, func(i, j int) bool { return b.FileTerms[i].Files > b.FileTerms[j].Files })
	return b, nil
}

func (s *logFileSource) scanFile(path string, b *Batch, stats []types.FileTerm, seen map[string]time.Time) error {
	rc, err := openFile(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	modTime := info.ModTime().UTC()
	channel := baseName(path)

	hit := make([]bool, len(s.res))
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		matched := false
		for i, re := range s.res {
			if !re.MatchString(line) {
				continue
			}
			matched = true
			hit[i] = true
			stats[i].Matches++
			if len(stats[i].Samples) < maxSamples {
				stats[i].Samples = append(stats[i].Samples, fmt.Sprintf("%s:%d: %s", path, lineNo, line))
			}
		}
		if matched && len(b.Records) < maxLogRecords {
			key := path + "\x00" + strconv.Itoa(lineNo) + "\x00" + line
			ts, ok := s.firstSeen[key]
			if !ok {
				ts = modTime
			}
			seen[key] = ts
			b.Records = append(b.Records, Record{Channel: channel, Event: &event.CanonicalEvent{
				Time:     ts,
				Level:    event.LevelWarning,
				Channel:  channel,
				Provider: LogFileProvider,
				Content:  line,
				Raw:      path + ":" + strconv.Itoa(lineNo),
				Payload:  map[string]string{"Path": path, "Line": strconv.Itoa(lineNo)},
			}})
		}
	}
	for i, h := range hit {
		if h {
			stats[i].Files++
		}
	}
	return sc.Err()
}
