package mantle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/xraph/mantle/plugin"
)

// pipelineState tracks a mutating operation:
// start -> pre -> mutation -> post -> done, with aborted reachable from
// pre and post. A failed mutation also ends in aborted.
type pipelineState int

const (
	stateStart pipelineState = iota
	statePre
	stateMutation
	statePost
	stateDone
	stateAborted
)

func (s pipelineState) String() string {
	switch s {
	case stateStart:
		return "start"
	case statePre:
		return "pre"
	case stateMutation:
		return "mutation"
	case statePost:
		return "post"
	case stateDone:
		return "done"
	case stateAborted:
		return "aborted"
	}
	return "unknown"
}

// operation pairs the events wrapped around one kind of mutation.
type operation struct {
	name string
	pre  Event
	post Event
}

var (
	opSave   = operation{name: "save", pre: PreSave, post: PostSave}
	opRemove = operation{name: "remove", pre: PreRemove, post: PostRemove}
	opUpdate = operation{name: "update", pre: PreUpdate, post: PostUpdate}
)

// run executes pre listeners, the mutation and post listeners strictly in
// that order. A post failure is reported but the mutation stays applied.
func (t *Type[U, T]) run(ctx context.Context, op operation, inst T, mutate func(context.Context) error) error {
	state := stateStart
	advance := func(next pipelineState) {
		t.logger.Debug("mantle: pipeline",
			slog.String("op", op.name),
			slog.String("from", state.String()),
			slog.String("to", next.String()),
		)
		state = next
	}

	advance(statePre)
	if err := t.emit(ctx, op.pre, StagePre, inst); err != nil {
		advance(stateAborted)
		return err
	}

	advance(stateMutation)
	if err := mutate(ctx); err != nil {
		advance(stateAborted)
		var cerr *CommittedError
		if errors.As(err, &cerr) {
			t.logger.Warn("mantle: check failed after commit",
				slog.String("op", op.name),
				slog.String("id", inst.Identity()),
				slog.String("error", cerr.Cause.Error()),
			)
		}
		return err
	}

	advance(statePost)
	if err := t.emit(ctx, op.post, StagePost, inst); err != nil {
		advance(stateAborted)
		t.logger.Warn("mantle: post hook failed after commit",
			slog.String("op", op.name),
			slog.String("id", inst.Identity()),
			slog.String("error", err.Error()),
		)
		return err
	}

	advance(stateDone)
	return nil
}

// emit runs the type's own listeners for event, then the engine plugins.
// The first failure stops the stage.
func (t *Type[U, T]) emit(ctx context.Context, event Event, stage Stage, inst T) error {
	for _, l := range t.listeners[event] {
		if err := l.fn(ctx, inst); err != nil {
			return &HookError{Type: t.name, Event: event, Stage: stage, Listener: l.name, Cause: err}
		}
	}

	reg := t.engine.plugins
	if reg == nil {
		return nil
	}
	var err error
	switch event {
	case PreSave:
		err = reg.EmitBeforeSave(ctx, t.name, inst)
	case PostSave:
		err = reg.EmitAfterSave(ctx, t.name, inst)
	case PreRemove:
		err = reg.EmitBeforeRemove(ctx, t.name, inst)
	case PostRemove:
		err = reg.EmitAfterRemove(ctx, t.name, inst)
	case PreUpdate:
		err = reg.EmitBeforeUpdate(ctx, t.name, inst)
	case PostUpdate:
		err = reg.EmitAfterUpdate(ctx, t.name, inst)
	}
	if err == nil {
		return nil
	}
	herr := &HookError{Type: t.name, Event: event, Stage: stage, Cause: err}
	var perr *plugin.HookError
	if errors.As(err, &perr) {
		herr.Listener = "plugin:" + perr.Plugin
		herr.Cause = perr.Err
	}
	return herr
}
