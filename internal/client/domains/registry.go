package domains

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"github.com/dmitrijs2005/lifekeeper/internal/client/hooks"
	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/client/services"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
)

// Deps are shared by every domain.
type Deps struct {
	Store       kv.Store
	Client      *client.HTTPClient
	Net         hooks.Connectivity
	Metrics     services.Metrics
	Logger      logging.Logger
	MaxAttempts int
	Debounce    time.Duration
}

// Registry holds the bindings of all domains in a fixed order.
type Registry struct {
	order    []string
	bindings map[string]Binding
}

// NewRegistry wires every domain against the REST collections of d.Client.
func NewRegistry(ctx context.Context, d Deps) *Registry {
	r := &Registry{bindings: map[string]Binding{}}

	r.add(wire[*models.Task, models.TaskCreate, models.TaskUpdate](
		ctx, d, TaskDomain(), client.NewCollection[*models.Task](d.Client, Collections[Tasks]), taskRow))
	r.add(wire[*models.Habit, models.HabitCreate, models.HabitUpdate](
		ctx, d, HabitDomain(), client.NewCollection[*models.Habit](d.Client, Collections[Habits]), habitRow))
	r.add(wire[*models.Project, models.ProjectCreate, models.ProjectUpdate](
		ctx, d, ProjectDomain(), client.NewCollection[*models.Project](d.Client, Collections[Projects]), projectRow))
	r.add(wire[*models.MoodCheckin, models.MoodCheckinCreate, models.MoodCheckinUpdate](
		ctx, d, MoodDomain(), client.NewCollection[*models.MoodCheckin](d.Client, Collections[Moods]), moodRow))
	r.add(wire[*models.EveningReflection, models.EveningReflectionCreate, models.EveningReflectionUpdate](
		ctx, d, ReflectionDomain(), client.NewCollection[*models.EveningReflection](d.Client, Collections[Reflections]), reflectionRow))
	r.add(wire[*models.StartDayEntry, models.StartDayEntryCreate, models.StartDayEntryUpdate](
		ctx, d, StartDayDomain(), client.NewCollection[*models.StartDayEntry](d.Client, Collections[StartDay]), startDayRow))

	return r
}

func wire[T models.Record, C services.Validator, U any](
	ctx context.Context,
	d Deps,
	def services.Domain[T],
	remote client.Remote[T],
	row func(T) Row,
) Binding {
	entities := services.NewEntityService[T, C, U](def, d.Store, d.Logger)
	syncer := services.NewSyncService[T](def, d.Store, remote, services.SyncOptions{
		MaxAttempts: d.MaxAttempts,
		Metrics:     d.Metrics,
		Logger:      d.Logger,
	})
	h := hooks.New(ctx, entities, syncer, d.Net, hooks.Options{Debounce: d.Debounce, Logger: d.Logger})
	return newBinding(h, row)
}

func (r *Registry) add(b Binding) {
	r.order = append(r.order, b.Name())
	r.bindings[b.Name()] = b
}

// Names lists domains in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Get(name string) (Binding, error) {
	b, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("unknown domain %q", name)
	}
	return b, nil
}

// SyncAll syncs every domain in turn. One domain failing does not stop
// the others; the errors are joined.
func (r *Registry) SyncAll(ctx context.Context) (map[string]services.SyncResult, error) {
	results := make(map[string]services.SyncResult, len(r.order))
	var errs []error
	for _, name := range r.order {
		res, err := r.bindings[name].Sync(ctx)
		results[name] = res
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return results, errors.Join(errs...)
}

// Pending returns queue lengths per domain.
func (r *Registry) Pending(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(r.order))
	for _, name := range r.order {
		n, err := r.bindings[name].Pending(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}

func (r *Registry) Close() {
	for _, name := range r.order {
		r.bindings[name].Close()
	}
}
