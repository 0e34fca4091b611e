// Package service hosts a graph's Runner as an OS background service,
// using github.com/kardianos/service the way the teacher's cmd/driver
// installs itself as a system service. Logs go only through the
// runtimelog.Logger passed to New; nothing is written through the service
// manager's own logger.
package service

import (
	"context"
	"time"

	"github.com/kardianos/service"

	"github.com/pyctools/runtime/internal/runner"
	"github.com/pyctools/runtime/internal/runtimelog"
)

// Config describes the installable service, mirroring
// kardianos/service.Config's common fields.
type Config struct {
	Name        string
	DisplayName string
	Description string
}

// program adapts a *runner.Runner to kardianos/service.Interface. Start
// must return immediately, since the actual graph run happens on its own
// goroutine, while Stop cancels that run and waits (bounded by
// stopTimeout) for it to unwind.
type program struct {
	r           *runner.Runner
	logger      runtimelog.Logger
	stopTimeout time.Duration

	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- p.r.Run(ctx)
	}()
	p.logger.Info("service started")
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.logger.Info("service stopping")
	p.cancel()
	select {
	case err := <-p.done:
		if err != nil {
			p.logger.Error("graph stopped with error", runtimelog.Error(err))
		}
	case <-time.After(p.stopTimeout):
		p.logger.Warn("graph did not stop within timeout")
	}
	return nil
}

// New builds a kardianos/service.Service hosting r. Install/Uninstall/Run
// are the service.Service methods a cmd/pyctoolsd CLI flag (--service
// install|uninstall|run) dispatches to, exactly as kardianos/service's own
// examples do.
func New(cfg Config, r *runner.Runner, logger runtimelog.Logger, stopTimeout time.Duration) (service.Service, error) {
	if logger == nil {
		logger = runtimelog.NewNop()
	}
	svcConfig := &service.Config{
		Name:        cfg.Name,
		DisplayName: cfg.DisplayName,
		Description: cfg.Description,
	}
	prg := &program{r: r, logger: logger, stopTimeout: stopTimeout}
	return service.New(prg, svcConfig)
}
