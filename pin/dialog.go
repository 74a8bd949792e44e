package pin

// Mode selects what the dialog is collecting a PIN for.
type Mode int

const (
	ModeVerify Mode = iota + 1
	ModeCreate
)

func (m Mode) String() string {
	switch m {
	case ModeVerify:
		return "verify"
	case ModeCreate:
		return "create"
	default:
		return "closed"
	}
}

// Step is the position inside the create flow. Verify is single-step and
// always reports StepEnter.
type Step int

const (
	StepEnter Step = iota + 1
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepEnter:
		return "enter"
	case StepConfirm:
		return "confirm"
	default:
		return "none"
	}
}

// MsgConfirmMismatch is shown after the confirm step disagrees with the
// first entry and the flow restarts.
const MsgConfirmMismatch = "PINs did not match. Please try again."

// phase is the dialog's tagged state. A nil phase means the dialog is closed.
type phase interface {
	mode() Mode
	step() Step
}

type verifyPhase struct{}

func (verifyPhase) mode() Mode { return ModeVerify }
func (verifyPhase) step() Step { return StepEnter }

type createEnterPhase struct{}

func (createEnterPhase) mode() Mode { return ModeCreate }
func (createEnterPhase) step() Step { return StepEnter }

type createConfirmPhase struct {
	pending string
}

func (createConfirmPhase) mode() Mode { return ModeCreate }
func (createConfirmPhase) step() Step { return StepConfirm }

// Event is what a successful Submit asks the owner to do next.
type Event interface {
	isEvent()
}

// VerifyRequested carries a code to check against the stored PIN.
type VerifyRequested struct{ Code string }

// CreateRequested carries a confirmed code to persist as the new PIN.
type CreateRequested struct{ Code string }

// Advanced means the first create entry was accepted and the dialog now
// waits for confirmation.
type Advanced struct{}

// ConfirmMismatch means the confirmation differed and the create flow
// restarted at the enter step.
type ConfirmMismatch struct{}

func (VerifyRequested) isEvent() {}
func (CreateRequested) isEvent() {}
func (Advanced) isEvent()        {}
func (ConfirmMismatch) isEvent() {}

// Dialog collects a 4-digit PIN. The zero value is a closed dialog.
type Dialog struct {
	phase phase
	input string
	err   string
}

// Open shows the dialog in the given mode with fresh state. Opening an
// already visible dialog restarts it.
func (d *Dialog) Open(m Mode) {
	d.reset()
	switch m {
	case ModeCreate:
		d.phase = createEnterPhase{}
	default:
		d.phase = verifyPhase{}
	}
}

// Visible reports whether the dialog is open.
func (d *Dialog) Visible() bool { return d.phase != nil }

// Mode returns the current mode, or 0 when closed.
func (d *Dialog) Mode() Mode {
	if d.phase == nil {
		return 0
	}
	return d.phase.mode()
}

// Step returns the current step, or 0 when closed.
func (d *Dialog) Step() Step {
	if d.phase == nil {
		return 0
	}
	return d.phase.step()
}

// Input returns the digits typed into the active field.
func (d *Dialog) Input() string { return d.input }

// Error returns the message currently displayed, if any.
func (d *Dialog) Error() string { return d.err }

// Type appends r to the active field. Non-digits and digits beyond the
// fourth are dropped.
func (d *Dialog) Type(r rune) {
	if d.phase == nil || !isDigit(r) || len(d.input) >= Length {
		return
	}
	d.input += string(r)
	d.err = ""
}

// Backspace removes the last digit of the active field.
func (d *Dialog) Backspace() {
	if d.phase == nil || d.input == "" {
		return
	}
	d.input = d.input[:len(d.input)-1]
}

// SetInput replaces the active field, keeping only the first four digits.
func (d *Dialog) SetInput(s string) {
	if d.phase == nil {
		return
	}
	d.input = ""
	for _, r := range s {
		d.Type(r)
	}
}

// CanSubmit reports whether the active field holds exactly four digits.
func (d *Dialog) CanSubmit() bool {
	return d.phase != nil && len(d.input) == Length
}

// Submit advances the state machine with the active field.
func (d *Dialog) Submit() (Event, error) {
	if d.phase == nil {
		return nil, ErrClosed
	}
	if !d.CanSubmit() {
		return nil, ErrIncomplete
	}

	code := d.input
	switch p := d.phase.(type) {
	case verifyPhase:
		return VerifyRequested{Code: code}, nil
	case createEnterPhase:
		d.phase = createConfirmPhase{pending: code}
		d.input = ""
		d.err = ""
		return Advanced{}, nil
	case createConfirmPhase:
		if code != p.pending {
			d.phase = createEnterPhase{}
			d.input = ""
			d.err = MsgConfirmMismatch
			return ConfirmMismatch{}, nil
		}
		return CreateRequested{Code: p.pending}, nil
	}
	return nil, ErrClosed
}

// Fail keeps the dialog open, clears the active field and shows msg. In
// the create flow the user starts over from the enter step.
func (d *Dialog) Fail(msg string) {
	if d.phase == nil {
		return
	}
	if _, ok := d.phase.(createConfirmPhase); ok {
		d.phase = createEnterPhase{}
	}
	d.input = ""
	d.err = msg
}

// Cancel closes the dialog without reporting any code.
func (d *Dialog) Cancel() { d.Close() }

// Close hides the dialog and discards all of its state.
func (d *Dialog) Close() {
	d.reset()
	d.phase = nil
}

func (d *Dialog) reset() {
	d.input = ""
	d.err = ""
	if d.phase != nil {
		d.phase = d.phase.mode().initial()
	}
}

func (m Mode) initial() phase {
	if m == ModeCreate {
		return createEnterPhase{}
	}
	return verifyPhase{}
}

// View is a read-only snapshot for rendering.
type View struct {
	Visible     bool
	Mode        Mode
	Step        Step
	Input       string
	Error       string
	Title       string
	SubmitLabel string
	Placeholder string
	CanSubmit   bool
}

// View returns a snapshot of the dialog.
func (d *Dialog) View() View {
	v := View{
		Visible:     d.Visible(),
		Mode:        d.Mode(),
		Step:        d.Step(),
		Input:       d.input,
		Error:       d.err,
		Placeholder: "Enter 4-digit PIN",
		CanSubmit:   d.CanSubmit(),
	}
	switch {
	case v.Mode == ModeCreate && v.Step == StepEnter:
		v.Title, v.SubmitLabel = "Create PIN", "Next"
	case v.Mode == ModeCreate:
		v.Title, v.SubmitLabel = "Confirm PIN", "Confirm"
	case v.Mode == ModeVerify:
		v.Title, v.SubmitLabel = "Enter PIN", "Confirm"
	}
	return v
}
