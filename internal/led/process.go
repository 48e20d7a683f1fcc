package led

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Process keeps an external display program, such as the shm reader,
// running. It is restarted after delay whenever it exits.
type Process struct {
	name  string
	args  []string
	delay time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	starts int
}

func StartProcess(delay time.Duration, name string, args ...string) *Process {
	if delay <= 0 {
		delay = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Process{name: name, args: args, delay: delay, cancel: cancel, done: make(chan struct{})}
	go p.run(ctx)
	return p
}

func (p *Process) run(ctx context.Context) {
	defer close(p.done)
	for {
		p.mu.Lock()
		p.starts++
		p.mu.Unlock()

		cmd := exec.CommandContext(ctx, p.name, p.args...)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		log.Info().Str("cmd", p.name).Strs("args", p.args).Msg("display process started")
		err := cmd.Run()
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("cmd", p.name).Dur("delay", p.delay).Msg("display process exited, restarting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.delay):
		}
	}
}

// Starts reports how many times the program has been launched.
func (p *Process) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

// Close kills the program and stops restarting it.
func (p *Process) Close() error {
	p.cancel()
	<-p.done
	return nil
}
