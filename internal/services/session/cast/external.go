package cast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"torrentplayer/internal/domain"
)

// ExecPlayer runs a native media player such as VLC or mpv as a child
// process.
type ExecPlayer struct {
	path   string
	args   []string
	logger *slog.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewExecPlayer(path string, args []string, logger *slog.Logger) *ExecPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecPlayer{path: path, args: args, logger: logger}
}

func (p *ExecPlayer) Open(_ context.Context, mediaURL, title string) (<-chan error, error) {
	bin, err := exec.LookPath(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: external player %q not found", domain.ErrOutputUnavailable, p.path)
	}

	args := append([]string(nil), p.args...)
	args = append(args, titleArgs(bin, title)...)
	args = append(args, mediaURL)

	cmd := exec.Command(bin, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", domain.ErrOutputUnavailable, filepath.Base(bin), err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	p.logger.Info("external player started",
		slog.String("player", filepath.Base(bin)),
		slog.Int("pid", cmd.Process.Pid))

	exited := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd = nil
		}
		p.mu.Unlock()
		exited <- err
		close(exited)
	}()
	return exited, nil
}

// Quit kills the running player, if any.
func (p *ExecPlayer) Quit() error {
	p.mu.Lock()
	cmd := p.cmd
	p.cmd = nil
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func titleArgs(bin, title string) []string {
	if title == "" {
		return nil
	}
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(bin), filepath.Ext(bin)))
	switch name {
	case "vlc":
		return []string{"--meta-title=" + title}
	case "mpv":
		return []string{"--force-media-title=" + title}
	default:
		return nil
	}
}
