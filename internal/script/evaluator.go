// Package script runs start-trigger programs: small Lua chunks that decide
// whether a patrol route should start on the current tick.
//
// A program sees one global table, trigger, with the fields route_id,
// authority_id, active_patrols, and tick, and must return a boolean:
//
//	return trigger.active_patrols == 0 and trigger.tick % 60 == 0
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/go-lua"
	"go.uber.org/zap"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/pkg/logger"
)

// TriggerContext is the read-only view of the world handed to a program.
type TriggerContext struct {
	RouteID       domain.RouteID
	AuthorityID   domain.AuthorityID
	ActivePatrols int
	Tick          int64
}

const (
	// DefaultTimeout bounds the wall time of one evaluation.
	DefaultTimeout = 250 * time.Millisecond
	// DefaultInstructionBudget bounds the VM instructions of one evaluation.
	DefaultInstructionBudget = 1_000_000

	// checkEvery is how many instructions run between limit checks.
	checkEvery = 1000
)

// Evaluator holds compiled-checked program sources keyed by hook id.
// Each evaluation runs in a fresh Lua state so programs cannot share globals.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[domain.HookID]string

	timeout time.Duration
	budget  int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout sets the per-evaluation deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithInstructionBudget sets how many VM instructions one evaluation may
// execute. Non-positive values keep the default.
func WithInstructionBudget(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.budget = n
		}
	}
}

// NewEvaluator creates an empty evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		programs: make(map[domain.HookID]string),
		timeout:  DefaultTimeout,
		budget:   DefaultInstructionBudget,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register syntax-checks source and stores it under id, replacing any
// previous program.
func (e *Evaluator) Register(id domain.HookID, source string) error {
	if strings.TrimSpace(string(id)) == "" {
		return fmt.Errorf("hook id is required")
	}
	l := lua.NewState()
	if err := lua.LoadBuffer(l, source, chunkName(id), ""); err != nil {
		return fmt.Errorf("compile hook %s: %w", id, err)
	}

	e.mu.Lock()
	e.programs[id] = source
	e.mu.Unlock()
	return nil
}

// LoadDir registers every *.lua file in dir; the hook id is the file name
// without extension. A missing directory registers nothing.
func (e *Evaluator) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read hook dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return 0, fmt.Errorf("read hook %s: %w", name, err)
		}
		id := domain.HookID(strings.TrimSuffix(name, ".lua"))
		if err := e.Register(id, string(data)); err != nil {
			return 0, err
		}
	}
	if len(names) > 0 {
		logger.Info("Start-trigger hooks loaded", zap.String("dir", dir), zap.Int("count", len(names)))
	}
	return len(names), nil
}

// Has reports whether a program is registered under id.
func (e *Evaluator) Has(id domain.HookID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.programs[id]
	return ok
}

// Evaluate runs the program registered under id. Lua errors, Go panics, a
// missing program, and non-boolean results are all returned as errors.
// A program that outlives its deadline or instruction budget is aborted.
func (e *Evaluator) Evaluate(ctx context.Context, id domain.HookID, tc TriggerContext) (result bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.mu.RLock()
	source, ok := e.programs[id]
	e.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("hook %s is not registered", id)
	}

	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("hook %s panicked: %v", id, r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	l := lua.NewState()
	openSandbox(l)
	pushTrigger(l, tc)

	if err := lua.LoadBuffer(l, source, chunkName(id), ""); err != nil {
		return false, fmt.Errorf("compile hook %s: %w", id, err)
	}
	var limitErr error
	executed := 0
	lua.SetDebugHook(l, func(l *lua.State, _ lua.Debug) {
		executed += checkEvery
		switch {
		case ctx.Err() != nil:
			limitErr = ctx.Err()
		case executed >= e.budget:
			limitErr = ErrBudgetExceeded
		default:
			return
		}
		lua.Errorf(l, "hook aborted: %s", limitErr.Error())
	}, lua.MaskCount, checkEvery)

	if err := l.ProtectedCall(0, 1, 0); err != nil {
		if limitErr != nil {
			return false, fmt.Errorf("run hook %s: %w", id, limitErr)
		}
		return false, fmt.Errorf("run hook %s: %w", id, err)
	}
	if l.TypeOf(-1) != lua.TypeBoolean {
		got := lua.TypeNameOf(l, -1)
		l.Pop(1)
		return false, fmt.Errorf("hook %s returned %s, want boolean", id, got)
	}
	result = l.ToBoolean(-1)
	l.Pop(1)
	return result, nil
}

// ErrBudgetExceeded is returned when a program runs out of instructions.
var ErrBudgetExceeded = errors.New("instruction budget exceeded")

// openSandbox loads only the side-effect free libraries.
func openSandbox(l *lua.State) {
	libs := []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "math", Function: lua.MathOpen},
	}
	for _, lib := range libs {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}
	// base exposes file loaders
	for _, name := range []string{"dofile", "loadfile", "load", "require"} {
		l.PushNil()
		l.SetGlobal(name)
	}
}

func pushTrigger(l *lua.State, tc TriggerContext) {
	l.NewTable()
	l.PushString(string(tc.RouteID))
	l.SetField(-2, "route_id")
	l.PushString(string(tc.AuthorityID))
	l.SetField(-2, "authority_id")
	l.PushInteger(tc.ActivePatrols)
	l.SetField(-2, "active_patrols")
	l.PushInteger(int(tc.Tick))
	l.SetField(-2, "tick")
	l.SetGlobal("trigger")
}

func chunkName(id domain.HookID) string {
	return "=" + string(id)
}
