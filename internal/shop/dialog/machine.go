// Package dialog defines the multi-step data-entry flows of the shop and
// the pure transition function that advances them. It never talks to the
// chat or the database; callers persist side effects after a transition.
package dialog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/m3rciful/doorshop/core/telegram/state"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

// ErrUnknownFlow is returned for a dialog whose flow is not registered.
var ErrUnknownFlow = errors.New("dialog: unknown flow")

// Expect is the kind of input a step accepts.
type Expect int

const (
	ExpectText Expect = iota
	ExpectMedia
	ExpectChoice
)

func (e Expect) String() string {
	switch e {
	case ExpectMedia:
		return "media"
	case ExpectChoice:
		return "choice"
	default:
		return "text"
	}
}

// Attachment is a photo or video received during a flow. Path is set once
// the file is stored locally.
type Attachment struct {
	Kind      model.MediaKind
	FileID    string
	MessageID int
	Path      string
}

// Input is one user event fed to a flow. Choice inputs carry the callback
// payload in Text. Finish ends a repeatable step.
type Input struct {
	Kind   Expect
	Text   string
	Media  Attachment
	Finish bool
}

// Text builds a free text input.
func Text(s string) Input { return Input{Kind: ExpectText, Text: s} }

// Choice builds a button choice input.
func Choice(payload string) Input { return Input{Kind: ExpectChoice, Text: payload} }

// MediaInput builds a photo or video input.
func MediaInput(a Attachment) Input { return Input{Kind: ExpectMedia, Media: a} }

// Finish builds the "done" input of a repeatable step.
func Finish() Input { return Input{Kind: ExpectChoice, Finish: true} }

// ValidationError rejects an input and carries the text shown to the user.
// An empty Message means the step prompt is repeated.
type ValidationError struct {
	Step    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dialog: invalid input at %s", e.Step)
	}
	return fmt.Sprintf("dialog: invalid input at %s: %s", e.Step, e.Message)
}

func invalid(msg string) error { return &ValidationError{Message: msg} }

// Step is one stage of a flow.
type Step struct {
	Name   string
	Expect Expect
	// Field is where the parsed value is stored.
	Field string
	// Prompt renders the question from the captured fields.
	Prompt func(d state.Dialog) string
	// Parse validates raw input and returns the value to store.
	Parse func(in Input) (any, error)
	// Mismatch is shown when the input has the wrong kind.
	Mismatch string
	// Repeat keeps the step open, appending every value, until Finish
	// arrives with at least MinItems values.
	Repeat   bool
	MinItems int
	Empty    string
	// Checkpoint marks a step whose value is persisted as soon as it is
	// accepted instead of at the end of the flow.
	Checkpoint bool
	// Skip drops the step when it reports true for the captured fields.
	Skip func(d state.Dialog) bool
}

// Flow is an ordered list of steps.
type Flow struct {
	Name  string
	Steps []Step
}

// Current returns the step the dialog waits on.
func (f Flow) Current(d state.Dialog) (Step, bool) {
	if d.Step < 0 || d.Step >= len(f.Steps) {
		return Step{}, false
	}
	return f.Steps[d.Step], true
}

// StepIndex returns the position of the named step or -1.
func (f Flow) StepIndex(name string) int {
	return slices.IndexFunc(f.Steps, func(s Step) bool { return s.Name == name })
}

// Outcome classifies a transition.
type Outcome int

const (
	// Rejected leaves the dialog untouched.
	Rejected Outcome = iota
	// Advanced moved to the next step.
	Advanced
	// Stayed accepted a value on a repeatable step.
	Stayed
	// Completed consumed the last step; the caller runs the flow action
	// and clears the dialog.
	Completed
)

func (o Outcome) String() string {
	switch o {
	case Advanced:
		return "advanced"
	case Stayed:
		return "stayed"
	case Completed:
		return "completed"
	default:
		return "rejected"
	}
}

// Result is the product of Advance.
type Result struct {
	Outcome Outcome
	// Dialog is the new state. On Rejected it equals the input dialog.
	Dialog state.Dialog
	// Step is the step that received the input.
	Step Step
	Err  error
}

// Next returns the step the new dialog waits on.
func (r Result) Next(f Flow) (Step, bool) {
	if r.Outcome == Completed {
		return Step{}, false
	}
	return f.Current(r.Dialog)
}

// Advance feeds in to the current step of d. It never mutates d.
func Advance(f Flow, d state.Dialog, in Input) Result {
	step, ok := f.Current(d)
	if !ok {
		return Result{Outcome: Rejected, Dialog: d, Err: fmt.Errorf("%w: %s step %d", ErrUnknownFlow, f.Name, d.Step)}
	}
	reject := func(err error) Result {
		var ve *ValidationError
		if errors.As(err, &ve) && ve.Step == "" {
			ve.Step = step.Name
		}
		return Result{Outcome: Rejected, Dialog: d, Step: step, Err: err}
	}

	next := d.Clone()
	if step.Repeat && in.Finish {
		items, _ := next.Fields[step.Field].([]any)
		if len(items) < step.MinItems {
			return reject(invalid(step.Empty))
		}
		return move(f, next, step)
	}
	if in.Finish || in.Kind != step.Expect {
		return reject(invalid(step.Mismatch))
	}

	value, err := step.parse(in)
	if err != nil {
		return reject(err)
	}
	if step.Repeat {
		items, _ := next.Fields[step.Field].([]any)
		next.Fields[step.Field] = append(slices.Clone(items), value)
		return Result{Outcome: Stayed, Dialog: next, Step: step}
	}
	next.Fields[step.Field] = value
	return move(f, next, step)
}

func move(f Flow, d state.Dialog, from Step) Result {
	d.Step++
	for d.Step < len(f.Steps) {
		s := f.Steps[d.Step]
		if s.Skip == nil || !s.Skip(d) {
			break
		}
		d.Step++
	}
	if d.Step >= len(f.Steps) {
		return Result{Outcome: Completed, Dialog: d, Step: from}
	}
	return Result{Outcome: Advanced, Dialog: d, Step: from}
}

func (s Step) parse(in Input) (any, error) {
	if s.Parse == nil {
		return in.Text, nil
	}
	return s.Parse(in)
}

// Attachments returns the media collected under field.
func Attachments(d state.Dialog, field string) []Attachment {
	items, _ := d.Fields[field].([]any)
	out := make([]Attachment, 0, len(items))
	for _, it := range items {
		if a, ok := it.(Attachment); ok {
			out = append(out, a)
		}
	}
	return out
}

// Paths returns the stored file paths of the media under field.
func Paths(d state.Dialog, field string) []string {
	var out []string
	for _, a := range Attachments(d, field) {
		if a.Path != "" {
			out = append(out, a.Path)
		}
	}
	return out
}
