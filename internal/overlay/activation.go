package overlay

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-marine/internal/registry"
	"github.com/joeblew999/plat-marine/internal/style"
)

var (
	// ErrSurfaceNotReady means the surface has no loaded style yet or is
	// reloading one. Retry after the load completes.
	ErrSurfaceNotReady = errors.New("surface not ready")
	// ErrRemoteFetch means the token, metadata or data download failed.
	ErrRemoteFetch = errors.New("remote fetch failed")
	// ErrSurfaceRejected means the surface refused a source or layer.
	ErrSurfaceRejected = errors.New("surface rejected change")
	// ErrActivationCancelled resolves an activation whose overlay was
	// deactivated while it was pending.
	ErrActivationCancelled = errors.New("activation cancelled")
	// ErrActivationSuperseded resolves an activation interrupted by a theme
	// change. The overlay is re-activated once the new style loads.
	ErrActivationSuperseded = errors.New("activation superseded")
	// ErrClosed is returned once the manager has been closed.
	ErrClosed = errors.New("overlay manager closed")

	ErrUnknownOverlay = registry.ErrUnknownOverlay
	ErrTranslation    = style.ErrTranslation
)

// State is an overlay's lifecycle state.
type State string

const (
	Inactive State = "INACTIVE"
	Pending  State = "PENDING"
	Active   State = "ACTIVE"
	Removing State = "REMOVING"
)

// Activation is the future result of an Activate call. Concurrent
// activations of the same overlay share one Activation.
type Activation struct {
	ID      string
	Overlay string

	done    chan struct{}
	settled bool
	err     error
}

func newActivation(overlay string) *Activation {
	return &Activation{ID: uuid.NewString(), Overlay: overlay, done: make(chan struct{})}
}

// settledActivation returns an already-resolved Activation.
func settledActivation(overlay string, err error) *Activation {
	a := newActivation(overlay)
	a.resolve(err)
	return a
}

// resolve settles a. Only the first call has an effect.
func (a *Activation) resolve(err error) {
	if a.settled {
		return
	}
	a.settled = true
	a.err = err
	close(a.done)
}

// Done is closed once the activation settles.
func (a *Activation) Done() <-chan struct{} { return a.done }

// Settled reports whether the activation has resolved.
func (a *Activation) Settled() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Err returns the outcome, or nil while the activation is still pending.
func (a *Activation) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Wait blocks until the activation settles or ctx ends. It must not be
// called from the engine loop, which is what settles it.
func (a *Activation) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
