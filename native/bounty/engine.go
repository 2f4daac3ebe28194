package bounty

import (
	"fmt"

	"contractorium/core/events"
	"contractorium/core/types"
)

// Engine runs bounty decisions against the configured state, commits their
// effects atomically and emits the resulting events. Callers serialise access.
type Engine struct {
	state   State
	emitter events.Emitter
}

// NewEngine creates an engine with a no-op emitter. Callers can override the
// emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(bountyEvent{evt: event})
}

// Initialize stores cfg when no configuration exists yet. It reports whether
// the config was written.
func (e *Engine) Initialize(cfg Config) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	if _, ok, err := e.state.BountyConfig(); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	out := &Outcome{Config: &cfg}
	out.add(PutConfig{Config: cfg})
	out.emit(NewConfigInitializedEvent(cfg))
	if err := e.execute(out); err != nil {
		return false, err
	}
	return true, nil
}

// Config returns the stored platform configuration.
func (e *Engine) Config() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, ok, err := e.state.BountyConfig()
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return nil, ErrNotInitialized
	}
	clone := *cfg
	return &clone, nil
}

// Context returns a decision context for sender over the current state.
func (e *Engine) Context(sender [20]byte) (*Context, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	return NewContext(*cfg, sender, e.state), nil
}

func (e *Engine) execute(out *Outcome) error {
	if err := e.state.BountyCommit(out.Effects); err != nil {
		return fmt.Errorf("bounty: commit: %w", err)
	}
	for _, evt := range out.Events {
		e.emit(evt)
	}
	return nil
}

func (e *Engine) run(sender [20]byte, decide func(*Context) (*Outcome, error)) (*Outcome, error) {
	ctx, err := e.Context(sender)
	if err != nil {
		return nil, err
	}
	out, err := decide(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.execute(out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProgram registers the sender's program.
func (e *Engine) CreateProgram(sender [20]byte, name, description, image string) (*Program, error) {
	out, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.CreateProgram(name, description, image)
	})
	if err != nil {
		return nil, err
	}
	return out.Program, nil
}

// EditProgram updates the sender's program and returns the stored record.
func (e *Engine) EditProgram(sender [20]byte, name, description, image string) (*Program, error) {
	out, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.EditProgram(name, description, image)
	})
	if err != nil {
		return nil, err
	}
	return out.Program, nil
}

// VerifyProgram marks target verified.
func (e *Engine) VerifyProgram(sender, target [20]byte) (*Program, error) {
	out, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.VerifyProgram(target)
	})
	if err != nil {
		return nil, err
	}
	return out.Program, nil
}

func (e *Engine) DeleteProgram(sender [20]byte) error {
	_, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.DeleteProgram()
	})
	return err
}

func (e *Engine) DeleteProgramAdmin(sender, target [20]byte) error {
	_, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.DeleteProgramAdmin(target)
	})
	return err
}

// CreateReport files a finding and returns the new claim id.
func (e *Engine) CreateReport(sender, to [20]byte, title, description string) (uint64, error) {
	out, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.CreateReport(to, title, description)
	})
	if err != nil {
		return 0, err
	}
	return out.ClaimID, nil
}

// CloseAndPayReport settles or refunds. Inspect Outcome.Refunded to tell the
// two apart.
func (e *Engine) CloseAndPayReport(sender [20]byte, payment Payment, claimID uint64, note string) (*Outcome, error) {
	return e.run(sender, func(c *Context) (*Outcome, error) {
		return c.CloseAndPayReport(payment, claimID, note)
	})
}

func (e *Engine) DeleteReport(sender [20]byte, claimID uint64) error {
	_, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.DeleteReport(claimID)
	})
	return err
}

func (e *Engine) DeleteReportAdmin(sender [20]byte, claimID uint64) error {
	_, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.DeleteReportAdmin(claimID)
	})
	return err
}

func (e *Engine) ResignManager(sender, next [20]byte) error {
	_, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.ResignManager(next)
	})
	return err
}

func (e *Engine) SetCut(sender [20]byte, rateBps uint32) error {
	_, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.SetCut(rateBps)
	})
	return err
}

// Payday sweeps platform revenue to the deployer and returns the amount sent.
func (e *Engine) Payday(sender [20]byte) (uint64, error) {
	out, err := e.run(sender, func(c *Context) (*Outcome, error) {
		return c.Payday()
	})
	if err != nil {
		return 0, err
	}
	return out.Amount, nil
}

// PreviewCut reports the split a settlement of amount would produce under the
// current config.
func (e *Engine) PreviewCut(amount uint64) (payout, revenue uint64, err error) {
	cfg, err := e.Config()
	if err != nil {
		return 0, 0, err
	}
	return Split(amount, cfg.CutBps)
}
