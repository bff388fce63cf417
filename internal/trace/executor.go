package trace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"navkit/internal/model"
)

// Target is what a script drives: a running navigation session.
type Target interface {
	Navigate(search model.Search, delay time.Duration)
	Back() bool
	Forward() bool
	Sync()
	Click(href string) (bool, error)
	Register(def model.RouteDefinition)
	SetPermission(allow bool)
	Settle(ctx context.Context) error
}

// Executor runs script commands against a Target.
type Executor struct {
	target Target
	logger *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(target Target, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{target: target, logger: logger}
}

// Run executes commands in order and settles the target at the end.
// Failures reported by settles (handler errors) do not stop the run; they are
// returned together once the script is done. A cancelled ctx stops the run.
func (e *Executor) Run(ctx context.Context, commands <-chan Command) error {
	var errs []error
	for cmd := range commands {
		if err := ctx.Err(); err != nil {
			// drain so the parser goroutine can finish
			for range commands {
			}
			return errors.Join(append(errs, err)...)
		}
		if err := e.Exec(ctx, cmd); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.target.Settle(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Exec runs a single command.
func (e *Executor) Exec(ctx context.Context, cmd Command) error {
	e.logger.Debug("script command", zap.Int("line", cmd.Line), zap.String("command", cmd.Raw))

	switch cmd.Kind {
	case KindNavigate:
		e.target.Navigate(searchFor(cmd.Target), cmd.Delay)
	case KindBack:
		if !e.target.Back() {
			e.logger.Info("back: no previous entry", zap.Int("line", cmd.Line))
		}
	case KindForward:
		if !e.target.Forward() {
			e.logger.Info("forward: no next entry", zap.Int("line", cmd.Line))
		}
	case KindSync:
		e.target.Sync()
	case KindClick:
		intercepted, err := e.target.Click(cmd.Target)
		if err != nil {
			return fmt.Errorf("line %d: %w", cmd.Line, err)
		}
		if !intercepted {
			e.logger.Info("click fell through to the browser", zap.String("href", cmd.Target))
		}
	case KindRegister:
		def := model.RouteDefinition{Title: cmd.Title, Path: cmd.Target}
		if cmd.Hidden {
			def.Visibility = model.Hidden
		}
		e.target.Register(def)
	case KindPermission:
		e.target.SetPermission(cmd.Allow)
	case KindSettle:
		if err := e.target.Settle(ctx); err != nil {
			return fmt.Errorf("line %d: %w", cmd.Line, err)
		}
	default:
		return fmt.Errorf("line %d: unknown command %q", cmd.Line, cmd.Kind)
	}
	return nil
}

// searchFor keeps fragments by using the structured form when one is present.
func searchFor(target string) model.Search {
	if strings.Contains(target, "#") {
		return model.PathObject(target)
	}
	return model.PathString(target)
}
