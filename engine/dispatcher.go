package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Dispatcher tries a list of engines in order and returns the first
// successful result. It is itself an Engine so callers need not care
// whether one or several engines are configured.
type Dispatcher struct {
	engines []Engine
	memory  *DomainMemory
}

// NewDispatcher creates a Dispatcher. engines[0] is tried first.
func NewDispatcher(engines ...Engine) *Dispatcher {
	return &Dispatcher{engines: engines}
}

// WithMemory makes the dispatcher try the engine that last succeeded for a
// host before the others. A remembered engine that fails is forgotten.
func (d *Dispatcher) WithMemory(m *DomainMemory) *Dispatcher {
	d.memory = m
	return d
}

func (d *Dispatcher) Name() string { return "dispatcher" }

// Fetch escalates through the engines. If every engine fails, the first
// engine's error is returned, so an origin status code seen by the plain
// HTTP engine is not masked by a later browser failure.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	var firstErr error
	engines, preferred := d.order(req.URL)
	for _, eng := range engines {
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		result, err := eng.Fetch(ctx, req)
		if err == nil {
			slog.Debug("engine succeeded", "engine", eng.Name(), "url", req.URL)
			if d.memory != nil {
				d.memory.Remember(req.URL, eng.Name())
			}
			return result, nil
		}

		slog.Info("engine failed, escalating", "engine", eng.Name(), "url", req.URL, "error", err)
		if d.memory != nil && eng.Name() == preferred {
			d.memory.Forget(req.URL)
		}
		if firstErr == nil {
			firstErr = err
		}
		if isTerminal(err) {
			break
		}
	}

	if firstErr == nil {
		firstErr = fmt.Errorf("dispatcher: no engines configured for %s", req.URL)
	}
	return nil, firstErr
}

// order returns the engines with the remembered one for url's host first,
// and that engine's name ("" when nothing is remembered).
func (d *Dispatcher) order(url string) ([]Engine, string) {
	if d.memory == nil {
		return d.engines, ""
	}
	preferred := d.memory.Preferred(url)
	if preferred == "" {
		return d.engines, ""
	}
	ordered := make([]Engine, 0, len(d.engines))
	for _, eng := range d.engines {
		if eng.Name() == preferred {
			ordered = append(ordered, eng)
		}
	}
	for _, eng := range d.engines {
		if eng.Name() != preferred {
			ordered = append(ordered, eng)
		}
	}
	return ordered, preferred
}

// isTerminal reports whether escalating to another engine is pointless:
// the origin said the page does not exist.
func isTerminal(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusGone
}
