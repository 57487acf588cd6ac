package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/pkg/metrics"
)

// DefaultTimeout bounds one ffprobe invocation.
const DefaultTimeout = 30 * time.Second

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Prober reads media durations with ffprobe.
type Prober struct {
	path    string
	timeout time.Duration
	run     runFunc
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewProber creates a prober running the ffprobe binary at path.
func NewProber(path string, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{path: path, timeout: timeout, run: runCommand, metrics: m, logger: logger}
}

// Duration returns the container duration of url in seconds. Timeouts,
// non-zero exits and unparsable output are returned as External errors
// with a zero duration.
func (p *Prober) Duration(ctx context.Context, url string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.run(ctx, p.path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		url,
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", p.timeout)
		} else {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
				err = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
			}
		}
		return p.fail(url, err)
	}

	raw := strings.TrimSpace(string(out))
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return p.fail(url, fmt.Errorf("unparsable duration %q", raw))
	}
	p.metrics.ObserveProbe(true)
	p.logger.Debug("probed duration", zap.String("url", url), zap.Float64("seconds", d))
	return d, nil
}

func (p *Prober) fail(url string, err error) (float64, error) {
	p.metrics.ObserveProbe(false)
	p.logger.Warn("ffprobe failed", zap.String("url", url), zap.Error(err))
	return 0, domain.NewExternalError("ffprobe "+url, err)
}
