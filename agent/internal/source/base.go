package source

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/obsidianstack/winsight/agent/internal/config"
	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/pkg/types"
)

const defaultHTTPTimeout = 30 * time.Second

// Record is one acquired event. Exactly one of Raw or Event is set.
type Record struct {
	// Channel is the channel hint used when Raw carries none.
	Channel string
	// Raw is an unparsed event XML document.
	Raw string
	// Event is a record that arrived already structured.
	Event *event.CanonicalEvent
}

// Batch is the output of one Collect call.
type Batch struct {
	SourceID string
	Records  []Record
	// FileTerms holds per-pattern statistics from logfile sources.
	FileTerms []types.FileTerm
	// Skipped counts input that could not be read as a record at all.
	Skipped int
}

// Source is the common interface implemented by every record feed.
type Source interface {
	ID() string
	Collect(ctx context.Context) (*Batch, error)
}

// New returns the Source for src. filePatterns feeds logfile sources.
func New(src config.Source, filePatterns []string) (Source, error) {
	switch src.Type {
	case config.SourceArchive:
		return &archiveSource{src: src}, nil
	case config.SourceReplay:
		return &replaySource{src: src}, nil
	case config.SourceLogFile:
		return newLogFileSource(src, filePatterns), nil
	case config.SourceHTTP:
		client, err := BuildHTTPClient(src.Auth, src.TLS)
		if err != nil {
			return nil, fmt.Errorf("source %q: build http client: %w", src.ID, err)
		}
		return &httpSource{src: src, client: client}, nil
	default:
		return nil, fmt.Errorf("source: unsupported type %q", src.Type)
	}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.EffectiveHeader(), t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// BuildHTTPClient constructs an http.Client for the given auth and TLS settings.
// The shipper uses it for the server connection as well.
func BuildHTTPClient(auth config.AuthConfig, tlsOpts config.TLSConfig) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: tlsOpts.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if auth.CAFile != "" {
			caPEM, err := os.ReadFile(auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{base: &http.Transport{TLSClientConfig: tlsCfg}, auth: auth},
		Timeout:   defaultHTTPTimeout,
	}, nil
}

// expandPath resolves path to a sorted file list. path may be a file, a
// directory (filtered by glob on base names, case-insensitive), or a glob.
func expandPath(path, glob string) ([]string, error) {
	if strings.ContainsAny(path, "*?[") {
		files, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", path, err)
		}
		sort.Strings(files)
		return files, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if glob != "" {
			ok, _ := filepath.Match(strings.ToLower(glob), strings.ToLower(d.Name()))
			if !ok {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// openFile opens path, transparently decompressing ".zst" files.
func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(path), ".zst") {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &zstdFile{dec: dec, f: f}, nil
}

type zstdFile struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdFile) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdFile) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// baseName strips directories and every extension: "C:/logs/System.xml.zst"
// becomes "System".
func baseName(path string) string {
	name := filepath.Base(path)
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}
