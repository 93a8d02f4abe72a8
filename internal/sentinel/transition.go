package sentinel

import (
	"fmt"

	"github.com/vigilhq/vigil/internal/checker"
	"github.com/vigilhq/vigil/internal/notify"
)

// Transition classifies what happened between two consecutive check outcomes
// for one resource. It is derived fresh on every tick and never stored.
type Transition int

const (
	// TransitionNone: nothing alert-worthy happened.
	TransitionNone Transition = iota

	// TransitionNew: the resource went from healthy to failing.
	TransitionNew

	// TransitionChanged: the resource kept failing, but with a different
	// failure than the one already reported.
	TransitionChanged

	// TransitionResolved: the resource went from failing to healthy.
	TransitionResolved
)

func (t Transition) String() string {
	switch t {
	case TransitionNew:
		return "new"
	case TransitionChanged:
		return "changed"
	case TransitionResolved:
		return "resolved"
	default:
		return "none"
	}
}

// transitionEvent is a Transition plus the failures needed to render its
// alert message. old is set for Changed and Resolved; new for New and Changed.
type transitionEvent struct {
	kind Transition
	old  checker.Failure
	new  checker.Failure
}

// resolve applies the error-lifecycle table to the previously-alerted failure
// and the current outcome. It is a pure function: the returned newActive is
// the only state the caller carries to the next tick.
//
//	active   outcome            event      newActive
//	nil      healthy            None       nil
//	nil      failure f          New(f)     f
//	a        failure f, same    None       a
//	a        failure f, !same   Changed    f
//	a        healthy            Resolved   nil
func resolve(
	active checker.Failure,
	out checker.Outcome,
	same func(a, b checker.Failure) bool,
) (ev transitionEvent, newActive checker.Failure) {
	switch {
	case active == nil && out.Healthy():
		return transitionEvent{kind: TransitionNone}, nil

	case active == nil:
		return transitionEvent{kind: TransitionNew, new: out.Failure}, out.Failure

	case !out.Healthy():
		if same(active, out.Failure) {
			return transitionEvent{kind: TransitionNone}, active
		}
		return transitionEvent{kind: TransitionChanged, old: active, new: out.Failure}, out.Failure

	default:
		return transitionEvent{kind: TransitionResolved, old: active}, nil
	}
}

// message renders the alert for ev. The second return is false for
// TransitionNone, which produces no alert.
func (ev transitionEvent) message(resource string) (notify.Message, bool) {
	switch ev.kind {
	case TransitionNew:
		return notify.Message{
			Title: fmt.Sprintf("Error (new) %s", resource),
			Body: fmt.Sprintf("Resource %s report new error:\n%s",
				resource, ev.new.Description()),
		}, true

	case TransitionChanged:
		return notify.Message{
			Title: fmt.Sprintf("Error (changed) %s", resource),
			Body: fmt.Sprintf("Resource %s report changed error:\nOld error: %s\nNew error: %s",
				resource, ev.old.Description(), ev.new.Description()),
		}, true

	case TransitionResolved:
		return notify.Message{
			Title: fmt.Sprintf("Error (resolved) %s", resource),
			Body: fmt.Sprintf("Resource %s resolved error:\n%s",
				resource, ev.old.Description()),
		}, true

	default:
		return notify.Message{}, false
	}
}
