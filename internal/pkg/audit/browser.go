package audit

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/logger"
)

// A running browser that audits connect to over the DevTools protocol.
type Browser interface {
	// Remote debugging port audits attach to.
	Port() int
	Close() error
}

// Starts the shared browser for one batch.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

type ChromeOptions struct {
	Path          string
	Port          int
	Flags         []string
	LaunchTimeout time.Duration
}

// Launches a headless Chrome with remote debugging enabled and a throwaway
// profile directory.
type ChromeLauncher struct {
	opts   ChromeOptions
	client *http.Client
}

func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = 30 * time.Second
	}
	return &ChromeLauncher{
		opts:   opts,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

type chromeProcess struct {
	cmd        *exec.Cmd
	port       int
	profileDir string
	exited     chan struct{}
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	profileDir, err := os.MkdirTemp("", "perfsummary-chrome-")
	if err != nil {
		return nil, errors.Wrap(err, "create profile directory")
	}

	args := append([]string{
		fmt.Sprintf("--remote-debugging-port=%d", l.opts.Port),
		"--user-data-dir=" + profileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-gpu",
	}, l.opts.Flags...)
	args = append(args, "about:blank")

	cmd := exec.Command(l.opts.Path, args...)
	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(profileDir)
		return nil, errors.Wrapf(err, "start %s", l.opts.Path)
	}

	process := &chromeProcess{
		cmd:        cmd,
		port:       l.opts.Port,
		profileDir: profileDir,
		exited:     make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(process.exited)
	}()

	if err := l.waitReady(ctx, process); err != nil {
		_ = process.Close()
		return nil, err
	}

	logger.Log.Info("Browser started",
		zap.String("path", l.opts.Path),
		zap.Int("port", l.opts.Port),
		zap.Int("pid", cmd.Process.Pid))
	return process, nil
}

// Polls the DevTools version endpoint until the browser accepts connections.
func (l *ChromeLauncher) waitReady(ctx context.Context, process *chromeProcess) error {
	ctx, cancel := context.WithTimeout(ctx, l.opts.LaunchTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("http://127.0.0.1:%d/json/version", process.port)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return errors.Wrap(err, "build readiness request")
		}
		response, err := l.client.Do(request)
		if err == nil {
			_ = response.Body.Close()
			if response.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-process.exited:
			return errors.New("browser exited before accepting connections")
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "browser did not accept connections")
		case <-ticker.C:
		}
	}
}

func (p *chromeProcess) Port() int {
	return p.port
}

// Kills the browser, waits for it to exit and removes its profile.
func (p *chromeProcess) Close() error {
	select {
	case <-p.exited:
	default:
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.Log.Warn("Failed to kill browser", zap.Error(err))
		}
		select {
		case <-p.exited:
		case <-time.After(10 * time.Second):
			logger.Log.Warn("Browser did not exit after kill", zap.Int("pid", p.cmd.Process.Pid))
		}
	}
	if err := os.RemoveAll(p.profileDir); err != nil {
		return errors.Wrap(err, "remove browser profile")
	}
	return nil
}
