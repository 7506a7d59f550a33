// Package statemachine хранит таблицы допустимых переходов статусов
// (по одной на сущность) поверх looplab/fsm.
package statemachine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/looplab/fsm"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// Table описывает переходы: целевой статус -> допустимые исходные статусы.
// Имя события fsm совпадает с целевым статусом.
type Table[S ~string] map[S][]S

// Machine проверяет и применяет переходы по таблице
type Machine[S ~string] struct {
	name      string
	events    fsm.Events
	callbacks fsm.Callbacks
}

// New строит машину состояний. Колбэки в формате looplab/fsm:
// "before_<status>" - охранные условия, "enter_<status>"/"enter_state" - побочные эффекты.
func New[S ~string](name string, table Table[S], callbacks fsm.Callbacks) *Machine[S] {
	events := make(fsm.Events, 0, len(table))
	for dst, srcs := range table {
		src := make([]string, len(srcs))
		for i, s := range srcs {
			src[i] = string(s)
		}
		events = append(events, fsm.EventDesc{Name: string(dst), Src: src, Dst: string(dst)})
	}
	sort.Slice(events, func(a, b int) bool { return events[a].Name < events[b].Name })
	if callbacks == nil {
		callbacks = fsm.Callbacks{}
	}
	return &Machine[S]{name: name, events: events, callbacks: callbacks}
}

// Can сообщает, есть ли ребро from -> to
func (m *Machine[S]) Can(from, to S) bool {
	return fsm.NewFSM(string(from), m.events, nil).Can(string(to))
}

// Targets возвращает статусы, достижимые из from за один переход
func (m *Machine[S]) Targets(from S) []S {
	f := fsm.NewFSM(string(from), m.events, nil)
	out := make([]S, 0)
	for _, name := range f.AvailableTransitions() {
		out = append(out, S(name))
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Transition выполняет переход from -> to. args передаются колбэкам как e.Args.
// Недопустимый переход возвращает models.ErrInvalidTransition, ошибка охранного
// условия возвращается как есть.
func (m *Machine[S]) Transition(ctx context.Context, from, to S, args ...any) error {
	if !m.Can(from, to) {
		return fmt.Errorf("%w: %s %s -> %s", models.ErrInvalidTransition, m.name, from, to)
	}
	f := fsm.NewFSM(string(from), m.events, m.callbacks)
	err := f.Event(ctx, string(to), args...)
	if err == nil {
		return nil
	}
	var canceled fsm.CanceledError
	if errors.As(err, &canceled) && canceled.Err != nil {
		return canceled.Err
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		if noTransition.Err != nil {
			return noTransition.Err
		}
		return nil
	}
	return fmt.Errorf("%s transition %s -> %s: %w", m.name, from, to, err)
}

// Guard оборачивает охранное условие: ошибка отменяет переход
func Guard(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Cancel(err)
		}
	}
}

// Action оборачивает побочный эффект входа в состояние
func Action(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Err = err
		}
	}
}
