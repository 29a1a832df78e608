package tervezo

import "sync/atomic"

// ActionKind enumerates the operations the action menu (C9) can
// dispatch against an open implementation.
type ActionKind int

const (
	ActionCreatePR ActionKind = iota
	ActionMergePR
	ActionClosePR
	ActionReopenPR
	ActionRestart
	ActionSendPrompt
)

// RequiresConfirm reports whether the action is destructive enough to
// require an explicit confirm step before dispatch.
func (k ActionKind) RequiresConfirm() bool {
	switch k {
	case ActionMergePR, ActionClosePR, ActionRestart:
		return true
	default:
		return false
	}
}

// ActionResult is delivered once an in-flight action completes.
type ActionResult struct {
	Kind ActionKind

	// Navigate is set when the action created a new implementation that
	// the UI should switch the detail view to (e.g. a restart that spun
	// up a fresh implementation rather than resuming the current one).
	Navigate string

	Message string
	Err     error
}

// Dispatcher runs actions against an implementation in the background
// and reports outcomes on Results, one action in flight at a time.
type Dispatcher struct {
	client *Client
	id     string

	Results chan ActionResult
	busy    atomic.Bool
}

// NewDispatcher creates a dispatcher for implementation id.
func NewDispatcher(client *Client, id string) *Dispatcher {
	return &Dispatcher{
		client:  client,
		id:      id,
		Results: make(chan ActionResult, 8),
	}
}

// Busy reports whether an action is currently executing.
func (d *Dispatcher) Busy() bool { return d.busy.Load() }

// Dispatch starts action running in the background. Callers are
// responsible for routing confirm-required actions through a
// confirmation prompt before calling this.
func (d *Dispatcher) Dispatch(action ActionKind, promptMessage string) {
	if !d.busy.CompareAndSwap(false, true) {
		return
	}
	go d.run(action, promptMessage)
}

func (d *Dispatcher) run(action ActionKind, promptMessage string) {
	defer d.busy.Store(false)

	var result ActionResult
	result.Kind = action

	switch action {
	case ActionCreatePR:
		msg, err := d.client.CreatePR(d.id)
		result.Message, result.Err = msg, err
	case ActionMergePR:
		msg, err := d.client.MergePR(d.id)
		result.Message, result.Err = msg, err
	case ActionClosePR:
		msg, err := d.client.ClosePR(d.id)
		result.Message, result.Err = msg, err
	case ActionReopenPR:
		msg, err := d.client.ReopenPR(d.id)
		result.Message, result.Err = msg, err
	case ActionRestart:
		restart, err := d.client.Restart(d.id)
		if err != nil {
			result.Err = err
		} else {
			result.Message = restart.Message
			if restart.IsNewImplementation {
				result.Navigate = restart.ImplementationID
			}
		}
	case ActionSendPrompt:
		msg, err := d.client.SendPrompt(d.id, promptMessage)
		result.Message, result.Err = msg, err
	}

	d.Results <- result
}
