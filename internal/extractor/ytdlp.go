package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/utils"
)

// ProcessError is a non-zero exit of the backend process.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

// Error returns the last diagnostic line printed by the process.
func (e *ProcessError) Error() string {
	if msg := lastLine(e.Stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("yt-dlp exited with code %d", e.ExitCode)
}

// ErrProcessTimeout is returned when the process outlives its deadline.
var ErrProcessTimeout = errors.New("yt-dlp process timed out")

// YtDlpOptions configures the process adapter.
type YtDlpOptions struct {
	// Binary is the executable name or path.
	Binary string

	// ExtraPath entries are prepended to PATH (e.g. a JavaScript runtime for signature solving).
	ExtraPath []string

	// ProcessTimeout bounds one process run.
	ProcessTimeout time.Duration

	// SpawnRate limits process starts per second; zero disables throttling.
	SpawnRate  float64
	SpawnBurst int
}

// YtDlp runs the yt-dlp executable as the extraction backend.
type YtDlp struct {
	opts    YtDlpOptions
	limiter *rate.Limiter
	logger  *utils.Logger
}

// NewYtDlp creates a yt-dlp backend.
func NewYtDlp(opts YtDlpOptions, logger *utils.Logger) *YtDlp {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = 45 * time.Second
	}

	var limiter *rate.Limiter
	if opts.SpawnRate > 0 {
		burst := max(opts.SpawnBurst, 1)
		limiter = rate.NewLimiter(rate.Limit(opts.SpawnRate), burst)
	}

	return &YtDlp{
		opts:    opts,
		limiter: limiter,
		logger:  logger.Named("ytdlp"),
	}
}

// Extract implements Backend.
func (y *YtDlp) Extract(ctx context.Context, req Request) (*MediaInfo, error) {
	req.DumpSingleJSON = false
	out, err := y.run(ctx, BuildArgs(req))
	if err != nil {
		return nil, err
	}
	return decodeMediaInfo(out)
}

// Dump implements Backend.
func (y *YtDlp) Dump(ctx context.Context, req Request) (*Document, error) {
	req.DumpSingleJSON = true
	out, err := y.run(ctx, BuildArgs(req))
	if err != nil {
		return nil, err
	}
	return decodeDocument(out)
}

// Version runs the binary with --version.
func (y *YtDlp) Version(ctx context.Context) (string, error) {
	out, err := y.run(ctx, []string{"--version"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Update asks the binary to replace itself with the latest release and returns
// its last status line.
func (y *YtDlp) Update(ctx context.Context) (string, error) {
	out, err := y.run(ctx, []string{"-U"})
	if err != nil {
		return "", err
	}
	y.logger.Info("yt-dlp update finished", "result", lastLine(string(out)))
	return lastLine(string(out)), nil
}

// BuildArgs converts a request into command-line arguments.
func BuildArgs(req Request) []string {
	args := make([]string, 0, 24+2*len(req.Headers))

	if req.DumpSingleJSON {
		args = append(args, "--dump-single-json")
	} else {
		args = append(args, "--dump-json")
	}
	if req.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	if req.NoWarnings {
		args = append(args, "--no-warnings")
	}
	if req.GeoBypass {
		args = append(args, "--geo-bypass")
	}
	if req.FlatPlaylist {
		args = append(args, "--flat-playlist")
	}
	if req.PlaylistEnd > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(req.PlaylistEnd))
	}
	if req.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(req.SocketTimeout/time.Second)))
	}
	args = append(args,
		"--retries", strconv.Itoa(req.Retries),
		"--extractor-retries", strconv.Itoa(req.ExtractorRetries),
	)
	if req.FormatSelector != "" {
		args = append(args, "-f", req.FormatSelector)
	}
	if req.ExtractorArgs != "" {
		args = append(args, "--extractor-args", req.ExtractorArgs)
	}
	for _, key := range req.Headers.Keys() {
		args = append(args, "--add-header", key+": "+req.Headers[key])
	}

	// ids may begin with a dash
	return append(args, "--", req.URL)
}

func (y *YtDlp) run(ctx context.Context, args []string) ([]byte, error) {
	if y.limiter != nil {
		if err := y.limiter.Wait(ctx); err != nil {
			return nil, models.NewBackendError(fmt.Errorf("spawn throttled: %w", err))
		}
	}

	// Once started the process is bounded by its own timeout, not the caller.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), y.opts.ProcessTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, y.opts.Binary, args...)
	cmd.Env = y.env()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	out, err := cmd.Output()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			y.logger.Warn("yt-dlp timed out", "timeout", y.opts.ProcessTimeout)
			return nil, models.NewBackendError(ErrProcessTimeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr := &ProcessError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
			y.logger.Debug("yt-dlp failed", "exitCode", perr.ExitCode, "error", perr.Error(), "elapsed", elapsed)
			return nil, models.NewBackendError(perr)
		}
		return nil, models.NewBackendError(fmt.Errorf("failed to start yt-dlp: %w", err))
	}

	y.logger.Debug("yt-dlp finished", "elapsed", elapsed, "bytes", len(out))
	return out, nil
}

func (y *YtDlp) env() []string {
	if len(y.opts.ExtraPath) == 0 {
		return nil
	}
	paths := make([]string, 0, len(y.opts.ExtraPath)+1)
	for _, p := range y.opts.ExtraPath {
		if strings.HasPrefix(p, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		paths = append(paths, p)
	}
	paths = append(paths, os.Getenv("PATH"))
	return append(os.Environ(), "PATH="+strings.Join(paths, string(os.PathListSeparator)))
}

// decodeMediaInfo reads the first JSON object of a --dump-json run.
func decodeMediaInfo(out []byte) (*MediaInfo, error) {
	var info MediaInfo
	if err := json.NewDecoder(bytes.NewReader(out)).Decode(&info); err != nil {
		return nil, models.NewBackendError(fmt.Errorf("failed to decode yt-dlp output: %w", err))
	}
	return &info, nil
}

func decodeDocument(out []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(bytes.TrimSpace(out), &doc); err != nil {
		return nil, models.NewBackendError(fmt.Errorf("failed to decode yt-dlp output: %w", err))
	}
	return &doc, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
