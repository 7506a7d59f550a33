package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// IncidentTable - переходы инцидента: только вперед, завершенные и отмененные терминальны
var IncidentTable = Table[models.IncidentStatus]{
	models.IncidentAssigned:   {models.IncidentPending},
	models.IncidentInProgress: {models.IncidentPending, models.IncidentAssigned},
	models.IncidentCompleted:  {models.IncidentPending, models.IncidentAssigned, models.IncidentInProgress},
	models.IncidentCancelled:  {models.IncidentPending, models.IncidentAssigned, models.IncidentInProgress},
}

// UnitTable - рабочий цикл машины плюс вывод из эксплуатации из любого статуса
var UnitTable = Table[models.UnitStatus]{
	models.UnitDispatched:   {models.UnitAvailable},
	models.UnitOnScene:      {models.UnitDispatched},
	models.UnitTransporting: {models.UnitOnScene},
	models.UnitAvailable:    {models.UnitDispatched, models.UnitOnScene, models.UnitTransporting, models.UnitOutOfService},
	models.UnitOutOfService: {models.UnitAvailable, models.UnitDispatched, models.UnitOnScene, models.UnitTransporting},
}

// DispatchTable - монотонное продвижение назначения
var DispatchTable = Table[models.DispatchStatus]{
	models.DispatchOnScene:      {models.DispatchEnRoute},
	models.DispatchTransporting: {models.DispatchOnScene},
	models.DispatchCompleted:    {models.DispatchEnRoute, models.DispatchOnScene, models.DispatchTransporting},
}

// Каждый переход получает в e.Args сам документ и момент перехода:
// Transition(ctx, from, to, doc, at)

func eventTime(e *fsm.Event) time.Time {
	if len(e.Args) > 1 {
		if at, ok := e.Args[1].(time.Time); ok {
			return at
		}
	}
	return time.Now().UTC()
}

// NewIncidentMachine строит машину состояний инцидента
func NewIncidentMachine() *Machine[models.IncidentStatus] {
	callbacks := fsm.Callbacks{
		"enter_state": Action(func(_ context.Context, e *fsm.Event) error {
			inc, ok := e.Args[0].(*models.Incident)
			if !ok {
				return fmt.Errorf("incident machine: unexpected subject %T", e.Args[0])
			}
			inc.Status = models.IncidentStatus(e.Dst)
			inc.UpdatedAt = eventTime(e)
			return nil
		}),
	}
	return New("incident", IncidentTable, callbacks)
}

// NewUnitMachine строит машину состояний машины скорой помощи.
// Занятые статусы требуют ссылку на инцидент, выход из цикла ее очищает.
func NewUnitMachine() *Machine[models.UnitStatus] {
	requireReference := Guard(func(_ context.Context, e *fsm.Event) error {
		u, ok := e.Args[0].(*models.Unit)
		if !ok {
			return fmt.Errorf("unit machine: unexpected subject %T", e.Args[0])
		}
		if u.CurrentIncidentID == nil {
			return fmt.Errorf("%w: unit %s cannot become %s", models.ErrMissingReference, u.ID, e.Dst)
		}
		return nil
	})
	clearReference := Action(func(_ context.Context, e *fsm.Event) error {
		e.Args[0].(*models.Unit).CurrentIncidentID = nil
		return nil
	})

	callbacks := fsm.Callbacks{
		"before_" + string(models.UnitDispatched):   requireReference,
		"before_" + string(models.UnitOnScene):      requireReference,
		"before_" + string(models.UnitTransporting): requireReference,
		"enter_" + string(models.UnitAvailable):     clearReference,
		"enter_" + string(models.UnitOutOfService):  clearReference,
		"enter_state": Action(func(_ context.Context, e *fsm.Event) error {
			u := e.Args[0].(*models.Unit)
			u.Status = models.UnitStatus(e.Dst)
			u.UpdatedAt = eventTime(e)
			return nil
		}),
	}
	return New("unit", UnitTable, callbacks)
}

// NewDispatchMachine строит машину состояний назначения
func NewDispatchMachine() *Machine[models.DispatchStatus] {
	callbacks := fsm.Callbacks{
		"enter_" + string(models.DispatchOnScene): Action(func(_ context.Context, e *fsm.Event) error {
			d := e.Args[0].(*models.Dispatch)
			at := eventTime(e)
			d.ArrivedAt = &at
			return nil
		}),
		"enter_" + string(models.DispatchCompleted): Action(func(_ context.Context, e *fsm.Event) error {
			d := e.Args[0].(*models.Dispatch)
			at := eventTime(e)
			d.CompletedAt = &at
			return nil
		}),
		"enter_state": Action(func(_ context.Context, e *fsm.Event) error {
			d, ok := e.Args[0].(*models.Dispatch)
			if !ok {
				return fmt.Errorf("dispatch machine: unexpected subject %T", e.Args[0])
			}
			d.Status = models.DispatchStatus(e.Dst)
			d.UpdatedAt = eventTime(e)
			return nil
		}),
	}
	return New("dispatch", DispatchTable, callbacks)
}
