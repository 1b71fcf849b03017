package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
type Metrics struct {
	ProjectsSaved       prometheus.Counter
	ProjectsEdited      prometheus.Counter
	SaveProjectDuration prometheus.Histogram
}

// New creates a new Metrics instance with all registry module metrics registered.
func New() *Metrics {
	return &Metrics{
		ProjectsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safemint_projects_saved_total",
			Help: "Total number of projects registered",
		}),
		ProjectsEdited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safemint_projects_edited_total",
			Help: "Total number of project edits",
		}),
		SaveProjectDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "safemint_save_project_duration_seconds",
			Help:    "Duration of SaveProject operations (fee pull plus insert)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementProjectsSaved records a successful project registration.
func (m *Metrics) IncrementProjectsSaved() {
	m.ProjectsSaved.Inc()
}

// IncrementProjectsEdited records a successful project edit.
func (m *Metrics) IncrementProjectsEdited() {
	m.ProjectsEdited.Inc()
}

// ObserveSaveProject records the duration of a SaveProject operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSaveProject(start time.Time) {
	m.SaveProjectDuration.Observe(time.Since(start).Seconds())
}
