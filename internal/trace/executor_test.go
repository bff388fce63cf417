package trace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navkit/internal/model"
)

type fakeTarget struct {
	calls     []string
	settleErr error
	clickErr  error
	atStart   bool
}

func (f *fakeTarget) Navigate(search model.Search, delay time.Duration) {
	f.calls = append(f.calls, fmt.Sprintf("navigate %s structured=%t delay=%s", search.Path, search.Structured, delay))
}

func (f *fakeTarget) Back() bool {
	f.calls = append(f.calls, "back")
	return !f.atStart
}

func (f *fakeTarget) Forward() bool {
	f.calls = append(f.calls, "forward")
	return false
}

func (f *fakeTarget) Sync() { f.calls = append(f.calls, "sync") }

func (f *fakeTarget) Click(href string) (bool, error) {
	f.calls = append(f.calls, "click "+href)
	return true, f.clickErr
}

func (f *fakeTarget) Register(def model.RouteDefinition) {
	f.calls = append(f.calls, fmt.Sprintf("register %s %s %s", def.Path, def.Title, def.Visibility))
}

func (f *fakeTarget) SetPermission(allow bool) {
	f.calls = append(f.calls, fmt.Sprintf("permission %t", allow))
}

func (f *fakeTarget) Settle(ctx context.Context) error {
	f.calls = append(f.calls, "settle")
	return f.settleErr
}

func runScript(t *testing.T, target Target, script string) error {
	t.Helper()
	commands, errs := NewParser().Parse(strings.NewReader(script))
	err := NewExecutor(target, nil).Run(context.Background(), commands)
	require.NoError(t, <-errs)
	return err
}

func TestExecutor_Run(t *testing.T) {
	target := &fakeTarget{}
	err := runScript(t, target, `
navigate /docs
navigate /docs#usage 20ms
register /late "Late page" hidden
permission deny
click /late
back
forward
sync
`)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"navigate /docs structured=false delay=0s",
		"navigate /docs#usage structured=true delay=20ms",
		"register /late Late page hidden",
		"permission false",
		"click /late",
		"back",
		"forward",
		"sync",
		"settle",
	}, target.calls)
}

func TestExecutor_CollectsErrors(t *testing.T) {
	handlerErr := errors.New("handler failed")
	target := &fakeTarget{settleErr: handlerErr, clickErr: errors.New("bad href")}

	err := runScript(t, target, "settle\nclick ::\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, handlerErr)
	assert.Contains(t, err.Error(), "line 1: handler failed")
	assert.Contains(t, err.Error(), "line 2: bad href")
	// the final settle still runs
	assert.Equal(t, []string{"settle", "click ::", "settle"}, target.calls)
}

func TestExecutor_CancelledContext(t *testing.T) {
	target := &fakeTarget{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	commands, errs := NewParser().Parse(strings.NewReader("navigate /a\nnavigate /b\nnavigate /c\n"))
	err := NewExecutor(target, nil).Run(ctx, commands)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, target.calls)
	assert.NoError(t, <-errs)
}

func TestExecutor_UnknownKind(t *testing.T) {
	err := NewExecutor(&fakeTarget{}, nil).Exec(context.Background(), Command{Line: 7, Kind: "teleport"})
	assert.EqualError(t, err, `line 7: unknown command "teleport"`)
}
