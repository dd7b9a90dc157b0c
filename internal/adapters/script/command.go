package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"imageblender/internal/core/domain"
	"imageblender/internal/core/port"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultOutputFlag = "-o"
	outputName        = "out.png"
	maxStderrLog      = 4096
	waitDelay         = 2 * time.Second
)

// CommandProvider runs the blend script as a subprocess: <command...> <inputs...> <flag> <output>.
type CommandProvider struct {
	command    []string
	dir        string
	outputFlag string
	timeout    time.Duration
}

func NewCommandProvider(command []string, dir, outputFlag string, timeout time.Duration) *CommandProvider {
	if outputFlag == "" {
		outputFlag = DefaultOutputFlag
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &CommandProvider{command: command, dir: dir, outputFlag: outputFlag, timeout: timeout}
}

func (p *CommandProvider) Name() string {
	return "command"
}

func (p *CommandProvider) Attempt(ctx context.Context, images []domain.UploadedImage, ws port.Workspace) domain.Outcome {
	l := zerolog.Ctx(ctx)

	if len(p.command) == 0 || p.command[0] == "" {
		return domain.NotApplicable("no blend command configured")
	}

	binary, err := exec.LookPath(p.resolve(p.command[0]))
	if err != nil {
		l.Debug().Strs("command", p.command).Msg("binary not found")
		return domain.NotApplicable(fmt.Sprintf("blend command %s not found", p.command[0]))
	}

	paths, err := ws.Stage(images)
	if err != nil {
		return domain.Failed(err)
	}

	out := ws.OutputPath(outputName)

	args := append([]string{}, p.command[1:]...)
	args = append(args, paths...)
	args = append(args, p.outputFlag, out)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stderr := &cappedBuffer{limit: maxStderrLog + 1}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = p.dir
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("blend command timed out after %s: %w", p.timeout, err)
		} else {
			err = fmt.Errorf("blend command failed (%d): %w", cmd.ProcessState.ExitCode(), err)
		}

		l.Error().Err(err).Str("stderr", truncate(stderr.String())).Dur("elapsed", elapsed).
			Msg("blend command failed")
		return domain.Failed(err)
	}

	info, err := os.Stat(out)
	if err != nil {
		return domain.Failed(fmt.Errorf("output image not found after blend command: %w", err))
	}

	if info.Size() == 0 {
		return domain.Failed(errors.New("blend command produced an empty output image"))
	}

	l.Debug().Dur("elapsed", elapsed).Msg("blend command finished")

	return domain.Success(domain.NewPathResult(out))
}

// resolve makes a relative binary path such as ./blend relative to the working directory of the command.
func (p *CommandProvider) resolve(name string) string {
	if p.dir == "" || filepath.IsAbs(name) || !strings.ContainsRune(name, filepath.Separator) {
		return name
	}

	abs, err := filepath.Abs(filepath.Join(p.dir, name))
	if err != nil {
		return name
	}

	return abs
}

// cappedBuffer keeps the first limit bytes written to it and silently drops the rest, so a noisy script
// cannot grow memory while it runs.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		b.buf.Write(p[:min(len(p), room)])
	}

	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrLog {
		return s[:maxStderrLog] + "..."
	}

	return s
}
