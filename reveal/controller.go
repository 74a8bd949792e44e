// Package reveal decides whether a masked value may be shown in clear form.
// A Controller owns one reveal toggle: revealing requires a biometric match
// or the stored PIN, hiding never requires anything.
package reveal

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fahmaliyi/pinguard/biometric"
	"github.com/fahmaliyi/pinguard/pin"
)

// PINKey is the secret store key holding the user's PIN.
const PINKey = "user_pin"

const (
	MsgIncorrectPIN = "Incorrect PIN. Please try again."
	MsgStoreFailure = "An error occurred. Please try again."
	MsgAuthFailed   = "Authentication failed. Please try again."
	MsgAuthError    = "Failed to authenticate. Please try again later."
	MsgInvalidPIN   = "PIN must be exactly 4 digits."

	DefaultPrompt = "Authenticate to show balance"
)

var (
	ErrStorage = errors.New("reveal: secret store failure")
	ErrBusy    = errors.New("reveal: authorization already in progress")
)

// ErrWrongFlow is returned when a dialog result is delivered while the
// dialog is closed or showing the other mode.
var ErrWrongFlow = errors.New("reveal: dialog is not in that flow")

// SecretStore persists the PIN. Get reports ok=false when key is unset.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Outcome describes what RequestReveal did.
type Outcome int

const (
	// OutcomeHidden: the value was revealed and is now hidden again.
	OutcomeHidden Outcome = iota + 1
	// OutcomeRevealed: biometric authentication succeeded.
	OutcomeRevealed
	// OutcomeDialogOpened: the PIN dialog is waiting for input.
	OutcomeDialogOpened
	// OutcomeFailed: nothing changed; Notice explains why.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHidden:
		return "hidden"
	case OutcomeRevealed:
		return "revealed"
	case OutcomeDialogOpened:
		return "dialog"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Controller is safe for concurrent use, but only one authorization attempt
// runs at a time. Its lock is never held across store or biometric calls.
type Controller struct {
	store  SecretStore
	bio    biometric.Capability
	prompt string
	logger *slog.Logger

	mu       sync.Mutex
	revealed bool
	busy     bool
	notice   string
	dialog   pin.Dialog
	// gen changes on every cancel and teardown. A call suspended on the
	// store or the sensor only applies its result if gen is unchanged.
	gen uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithPrompt sets the message shown by the biometric prompt.
func WithPrompt(prompt string) Option {
	return func(c *Controller) { c.prompt = prompt }
}

// WithLogger sets the logger used for authorization decisions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New returns a controller in the hidden state.
func New(store SecretStore, bio biometric.Capability, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		bio:    bio,
		prompt: DefaultPrompt,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bio == nil {
		c.bio = biometric.Unavailable{}
	}
	return c
}

// Revealed reports whether the protected value may be displayed.
func (c *Controller) Revealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revealed
}

// Busy reports whether an authorization step is suspended on the store or
// the biometric sensor.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Notice returns the last user-visible failure notice.
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// ClearNotice dismisses the current notice.
func (c *Controller) ClearNotice() {
	c.mu.Lock()
	c.notice = ""
	c.mu.Unlock()
}

// Dialog returns a snapshot of the PIN dialog.
func (c *Controller) Dialog() pin.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog.View()
}

// RequestReveal toggles the reveal state. Hiding is immediate; revealing
// goes through biometric authentication or the PIN dialog.
func (c *Controller) RequestReveal(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.revealed {
		c.revealed = false
		c.mu.Unlock()
		c.logger.Debug("reveal hidden")
		return OutcomeHidden, nil
	}
	if c.dialog.Visible() {
		c.mu.Unlock()
		return OutcomeDialogOpened, nil
	}
	if c.busy {
		c.mu.Unlock()
		return OutcomeFailed, ErrBusy
	}
	c.busy = true
	c.notice = ""
	gen := c.gen
	c.mu.Unlock()

	outcome, err := c.authorize(ctx, gen)

	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
	return outcome, err
}

func (c *Controller) authorize(ctx context.Context, gen uint64) (Outcome, error) {
	_, ok, err := c.store.Get(ctx, PINKey)
	if err != nil {
		c.logger.Error("read pin failed", "error", err)
		c.commit(gen, func() { c.notice = MsgAuthError })
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !ok {
		c.logger.Info("no pin set, opening create dialog")
		return c.openAt(gen, pin.ModeCreate), nil
	}

	hasHardware, err := c.bio.HasHardware(ctx)
	if err != nil {
		return c.biometricError(gen, err)
	}
	enrolled, err := c.bio.IsEnrolled(ctx)
	if err != nil {
		return c.biometricError(gen, err)
	}
	if !hasHardware || !enrolled {
		c.logger.Debug("biometric unavailable, falling back to pin", "hardware", hasHardware, "enrolled", enrolled)
		return c.openAt(gen, pin.ModeVerify), nil
	}

	res, err := c.bio.Authenticate(ctx, c.prompt)
	if err != nil {
		return c.biometricError(gen, err)
	}
	switch res {
	case biometric.Success:
		if !c.commit(gen, func() { c.revealed = true }) {
			c.logger.Debug("biometric result dropped after teardown")
			return OutcomeFailed, nil
		}
		c.logger.Info("revealed via biometric")
		return OutcomeRevealed, nil
	case biometric.Cancelled:
		c.logger.Debug("biometric cancelled, falling back to pin")
		return c.openAt(gen, pin.ModeVerify), nil
	default:
		c.logger.Info("biometric authentication failed", "result", res.String())
		c.commit(gen, func() { c.notice = MsgAuthFailed })
		return OutcomeFailed, nil
	}
}

func (c *Controller) biometricError(gen uint64, err error) (Outcome, error) {
	c.logger.Error("biometric error", "error", err)
	c.commit(gen, func() { c.notice = MsgAuthError })
	return OutcomeFailed, nil
}

func (c *Controller) openAt(gen uint64, m pin.Mode) Outcome {
	if !c.commit(gen, func() { c.dialog.Open(m) }) {
		return OutcomeFailed
	}
	return OutcomeDialogOpened
}

// EnsurePIN opens the create dialog when no PIN has been set yet. A store
// failure is treated as "no PIN" so the user can still set one.
func (c *Controller) EnsurePIN(ctx context.Context) (bool, error) {
	_, ok, err := c.store.Get(ctx, PINKey)
	if err != nil {
		c.logger.Error("check pin failed", "error", err)
		c.openDialog(pin.ModeCreate)
		return false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !ok {
		c.openDialog(pin.ModeCreate)
	}
	return ok, nil
}

// HasPIN reports whether a PIN is stored.
func (c *Controller) HasPIN(ctx context.Context) (bool, error) {
	_, ok, err := c.store.Get(ctx, PINKey)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return ok, nil
}

// OpenVerify shows the PIN dialog in verify mode without consulting the
// biometric sensor.
func (c *Controller) OpenVerify() { c.openDialog(pin.ModeVerify) }

// Type forwards a keystroke to the dialog.
func (c *Controller) Type(r rune) {
	c.mu.Lock()
	c.dialog.Type(r)
	c.mu.Unlock()
}

// Backspace forwards a deletion to the dialog.
func (c *Controller) Backspace() {
	c.mu.Lock()
	c.dialog.Backspace()
	c.mu.Unlock()
}

// SetInput replaces the dialog's active field.
func (c *Controller) SetInput(s string) {
	c.mu.Lock()
	c.dialog.SetInput(s)
	c.mu.Unlock()
}

// CancelDialog closes the dialog. RevealState and the stored PIN are left
// untouched.
func (c *Controller) CancelDialog() {
	c.mu.Lock()
	c.dialog.Cancel()
	c.gen++
	c.mu.Unlock()
}

// Teardown hides the value and drops any dialog state, as when the owning
// screen goes away.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.revealed = false
	c.notice = ""
	c.dialog.Close()
	c.gen++
	c.mu.Unlock()
}

// SubmitDialog submits the dialog's field and routes the resulting event.
func (c *Controller) SubmitDialog(ctx context.Context) (pin.Event, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	ev, err := c.dialog.Submit()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	switch ev := ev.(type) {
	case pin.VerifyRequested:
		return ev, c.OnDialogVerify(ctx, ev.Code)
	case pin.CreateRequested:
		return ev, c.OnDialogCreate(ctx, ev.Code)
	default:
		return ev, nil
	}
}

// OnDialogVerify checks code against the stored PIN. On a match the value
// is revealed and the dialog closes; otherwise the dialog shows an error.
// The verify dialog must be open.
func (c *Controller) OnDialogVerify(ctx context.Context, code string) error {
	gen, err := c.begin(pin.ModeVerify)
	if err != nil {
		return err
	}
	defer c.end()

	stored, ok, err := c.store.Get(ctx, PINKey)
	if err != nil {
		c.logger.Error("read pin failed", "error", err)
		c.commit(gen, func() { c.dialog.Fail(MsgStoreFailure) })
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		c.logger.Info("pin mismatch")
		c.commit(gen, func() { c.dialog.Fail(MsgIncorrectPIN) })
		return nil
	}

	if !c.commit(gen, func() {
		c.revealed = true
		c.dialog.Close()
	}) {
		c.logger.Debug("pin verified after the dialog went away, not revealing")
		return nil
	}
	c.logger.Info("revealed via pin")
	return nil
}

// OnDialogCreate stores code as the PIN and reveals the value; creating the
// PIN counts as proof of ownership. The create dialog must be open.
func (c *Controller) OnDialogCreate(ctx context.Context, code string) error {
	gen, err := c.begin(pin.ModeCreate)
	if err != nil {
		return err
	}
	defer c.end()

	if err := pin.Validate(code); err != nil {
		c.commit(gen, func() { c.dialog.Fail(MsgInvalidPIN) })
		return err
	}

	if err := c.store.Set(ctx, PINKey, code); err != nil {
		c.logger.Error("write pin failed", "error", err)
		c.commit(gen, func() { c.dialog.Fail(MsgStoreFailure) })
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if !c.commit(gen, func() {
		c.revealed = true
		c.dialog.Close()
	}) {
		c.logger.Info("pin created after the dialog went away, not revealing")
		return nil
	}
	c.logger.Info("pin created")
	return nil
}

// begin claims the controller for a dialog result in mode m.
func (c *Controller) begin(m pin.Mode) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return 0, ErrBusy
	}
	if !c.dialog.Visible() || c.dialog.Mode() != m {
		return 0, fmt.Errorf("%w: want %s, dialog is %s", ErrWrongFlow, m, c.dialog.Mode())
	}
	c.busy = true
	return c.gen, nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// commit runs fn under the lock unless a cancel or teardown happened since
// gen was taken.
func (c *Controller) commit(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	fn()
	return true
}

func (c *Controller) openDialog(m pin.Mode) {
	c.mu.Lock()
	c.dialog.Open(m)
	c.mu.Unlock()
}
