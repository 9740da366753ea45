// Package viewmodel holds the alert list state that drives the presentation layer.
package viewmodel

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"hemogram-alerts-go/internal/api"
	"hemogram-alerts-go/internal/metrics"
	"hemogram-alerts-go/internal/models"
)

const (
	transportErrorFormat  = "Failed to fetch alerts: "
	unexpectedErrorFormat = "An unexpected error occurred: "
)

// State is the alert list state. An empty Error means no error.
type State struct {
	Alerts  []models.Alert `json:"alerts"`
	Loading bool           `json:"loading"`
	Error   string         `json:"error,omitempty"`
}

func (s State) HasError() bool {
	return s.Error != ""
}

func (s State) clone() State {
	s.Alerts = slices.Clone(s.Alerts)
	if s.Alerts == nil {
		s.Alerts = []models.Alert{}
	}
	return s
}

type ViewModel struct {
	source api.AlertSource
	logger zerolog.Logger

	mu    sync.RWMutex
	state State
	// seq identifies the most recently launched fetch. Only that fetch may
	// apply its result.
	seq uint64

	subsMu  sync.Mutex
	subs    map[int]chan State
	nextSub int
}

// New creates a view model and launches the initial fetch.
func New(ctx context.Context, source api.AlertSource, logger zerolog.Logger) *ViewModel {
	vm := NewIdle(source, logger)
	vm.Launch(ctx)
	return vm
}

// NewIdle creates a view model in its default state without fetching.
func NewIdle(source api.AlertSource, logger zerolog.Logger) *ViewModel {
	return &ViewModel{
		source: source,
		logger: logger.With().Str("component", "viewmodel").Logger(),
		state:  State{Alerts: []models.Alert{}},
		subs:   make(map[int]chan State),
	}
}

// State returns a snapshot of the current state.
func (vm *ViewModel) State() State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.state.clone()
}

// FetchAlerts launches a fetch and waits until its outcome has been handled.
func (vm *ViewModel) FetchAlerts(ctx context.Context) {
	<-vm.Launch(ctx)
}

// Launch marks the state as loading before returning, then fetches in the
// background. The returned channel is closed once the result is handled.
func (vm *ViewModel) Launch(ctx context.Context) <-chan struct{} {
	vm.mu.Lock()
	vm.seq++
	token := vm.seq
	vm.state.Loading = true
	vm.state.Error = ""
	vm.publish(vm.state.clone())
	vm.mu.Unlock()

	done := make(chan struct{})
	metrics.FetchesInFlight.Inc()
	go func() {
		defer close(done)
		defer metrics.FetchesInFlight.Dec()

		alerts, err := vm.source.GetAlerts(ctx)
		vm.finish(token, alerts, err)
	}()
	return done
}

func (vm *ViewModel) finish(token uint64, alerts []models.Alert, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case api.IsTransport(err):
		outcome = "transport"
	default:
		outcome = "error"
	}
	metrics.FetchesTotal.WithLabelValues(outcome).Inc()

	vm.mu.Lock()
	if token != vm.seq {
		vm.mu.Unlock()
		metrics.StaleResultsTotal.Inc()
		vm.logger.Debug().
			Uint64("token", token).
			Str("outcome", outcome).
			Msg("Discarding result of superseded fetch")
		return
	}

	vm.state.Loading = false
	switch outcome {
	case "ok":
		if alerts == nil {
			alerts = []models.Alert{}
		}
		vm.state.Alerts = alerts
	case "transport":
		vm.state.Error = transportErrorFormat + err.Error()
	default:
		vm.state.Error = unexpectedErrorFormat + err.Error()
	}
	vm.publish(vm.state.clone())
	vm.mu.Unlock()

	if err != nil {
		vm.logger.Warn().Err(err).Str("outcome", outcome).Msg("Failed to fetch alerts")
	} else {
		vm.logger.Info().Int("count", len(alerts)).Msg("Alerts fetched")
	}
}

// Subscribe returns a channel receiving every new state. Slow readers only
// see the latest state. The returned func unsubscribes.
func (vm *ViewModel) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	vm.subsMu.Lock()
	id := vm.nextSub
	vm.nextSub++
	vm.subs[id] = ch
	vm.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			vm.subsMu.Lock()
			delete(vm.subs, id)
			vm.subsMu.Unlock()
		})
	}
}

// publish must be called with vm.mu held so subscribers see states in order.
func (vm *ViewModel) publish(s State) {
	vm.subsMu.Lock()
	defer vm.subsMu.Unlock()

	for _, ch := range vm.subs {
		select {
		case ch <- s:
		default:
			// Replace the pending state with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
