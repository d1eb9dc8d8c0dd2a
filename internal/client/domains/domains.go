// Package domains defines the six synced entity types and wires each one
// into an entity service, a sync service and a hook.
package domains

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/services"
)

// Domain names. They appear in store keys (offline_<name>,
// <name>_sync_queue), logs and metrics labels.
const (
	Tasks       = "tasks"
	Habits      = "habits"
	Projects    = "projects"
	Moods       = "moods"
	Reflections = "reflections"
	StartDay    = "startday"
)

// Collections maps domain names to REST collection paths.
var Collections = map[string]string{
	Tasks:       "tasks",
	Habits:      "habits",
	Projects:    "projects",
	Moods:       "mood-checkins",
	Reflections: "evening-reflections",
	StartDay:    "start-day",
}

// ActionComplete is the completion endpoint of tasks and habits.
const ActionComplete = "complete"

func TaskDomain() services.Domain[*models.Task] {
	return services.Domain[*models.Task]{
		Name:      Tasks,
		NewRecord: func() *models.Task { return new(models.Task) },
		Search:    func(t *models.Task) []string { return []string{t.Title, t.Description} },
		Actions:   map[string]func(*models.Task, time.Time){ActionComplete: (*models.Task).Complete},
	}
}

func HabitDomain() services.Domain[*models.Habit] {
	return services.Domain[*models.Habit]{
		Name:      Habits,
		NewRecord: func() *models.Habit { return new(models.Habit) },
		Search:    func(h *models.Habit) []string { return []string{h.Name, h.Description} },
		Actions:   map[string]func(*models.Habit, time.Time){ActionComplete: (*models.Habit).Complete},
	}
}

func ProjectDomain() services.Domain[*models.Project] {
	return services.Domain[*models.Project]{
		Name:      Projects,
		NewRecord: func() *models.Project { return new(models.Project) },
		Search:    func(p *models.Project) []string { return []string{p.Name, p.Description} },
	}
}

func MoodDomain() services.Domain[*models.MoodCheckin] {
	return services.Domain[*models.MoodCheckin]{
		Name:      Moods,
		NewRecord: func() *models.MoodCheckin { return new(models.MoodCheckin) },
		Search: func(m *models.MoodCheckin) []string {
			return append([]string{m.Note}, m.Emotions...)
		},
	}
}

// ReflectionDomain keeps deleted reflections as is_deleted tombstones so the
// deletion syncs as a soft delete.
func ReflectionDomain() services.Domain[*models.EveningReflection] {
	return services.Domain[*models.EveningReflection]{
		Name:       Reflections,
		Tombstones: true,
		NewRecord:  func() *models.EveningReflection { return new(models.EveningReflection) },
		Search: func(r *models.EveningReflection) []string {
			return []string{r.Date, r.Highlights, r.Challenges, r.Gratitude}
		},
	}
}

func StartDayDomain() services.Domain[*models.StartDayEntry] {
	return services.Domain[*models.StartDayEntry]{
		Name:       StartDay,
		Tombstones: true,
		NewRecord:  func() *models.StartDayEntry { return new(models.StartDayEntry) },
		Search: func(s *models.StartDayEntry) []string {
			return append([]string{s.Date, s.Intention}, s.Priorities...)
		},
	}
}

// Row is the flat rendering of an entity used by the terminal client.
type Row struct {
	ID     string
	Title  string
	Detail string
	Status models.SyncStatus
}

func taskRow(t *models.Task) Row {
	detail := fmt.Sprintf("priority %d", t.Priority)
	if t.IsCompleted {
		detail = "done, " + detail
	}
	if t.DueDate != nil {
		detail += ", due " + t.DueDate.Format(models.DateLayout)
	}
	return Row{ID: string(t.ID), Title: t.Title, Detail: detail, Status: t.SyncStatus}
}

func habitRow(h *models.Habit) Row {
	detail := fmt.Sprintf("%s, streak %d, done %d", h.Frequency, h.CurrentStreak, h.CompletedCount)
	if h.TargetCount > 0 {
		detail += fmt.Sprintf("/%d", h.TargetCount)
	}
	return Row{ID: string(h.ID), Title: h.Name, Detail: detail, Status: h.SyncStatus}
}

func projectRow(p *models.Project) Row {
	detail := p.Description
	if p.IsArchived {
		detail = strings.TrimSpace("archived " + detail)
	}
	return Row{ID: string(p.ID), Title: p.Name, Detail: detail, Status: p.SyncStatus}
}

func moodRow(m *models.MoodCheckin) Row {
	return Row{
		ID:     string(m.ID),
		Title:  fmt.Sprintf("mood %d/5 %s", m.Mood, m.Note),
		Detail: strings.Join(m.Emotions, ", "),
		Status: m.SyncStatus,
	}
}

func reflectionRow(r *models.EveningReflection) Row {
	return Row{
		ID:     string(r.ID),
		Title:  fmt.Sprintf("%s rated %d", r.Date, r.Rating),
		Detail: r.Highlights,
		Status: r.SyncStatus,
	}
}

func startDayRow(s *models.StartDayEntry) Row {
	return Row{
		ID:     string(s.ID),
		Title:  fmt.Sprintf("%s %s", s.Date, s.Intention),
		Detail: strings.Join(s.Priorities, ", "),
		Status: s.SyncStatus,
	}
}
