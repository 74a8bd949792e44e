package reveal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/fahmaliyi/pinguard/biometric"
	"github.com/fahmaliyi/pinguard/pin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk on fire")

type fakeStore struct {
	mu      sync.Mutex
	values  map[string]string
	getErr  error
	setErr  error
	gets    int
	sets    int
	lastSet string
}

func newFakeStore(pinValue string) *fakeStore {
	s := &fakeStore{values: map[string]string{}}
	if pinValue != "" {
		s.values[PINKey] = pinValue
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	s.lastSet = value
	return nil
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets + s.sets
}

type fakeBiometric struct {
	hardware bool
	enrolled bool
	result   biometric.Result
	err      error

	checks  int
	prompts []string
}

func (b *fakeBiometric) HasHardware(context.Context) (bool, error) {
	b.checks++
	return b.hardware, b.err
}

func (b *fakeBiometric) IsEnrolled(context.Context) (bool, error) {
	b.checks++
	return b.enrolled, b.err
}

func (b *fakeBiometric) Authenticate(_ context.Context, prompt string) (biometric.Result, error) {
	b.prompts = append(b.prompts, prompt)
	return b.result, nil
}

func (b *fakeBiometric) calls() int { return b.checks + len(b.prompts) }

func submitCode(t *testing.T, c *Controller, code string) pin.Event {
	t.Helper()
	c.SetInput(code)
	ev, err := c.SubmitDialog(context.Background())
	require.NoError(t, err)
	return ev
}

func TestRequestReveal_BiometricSuccess(t *testing.T) {
	store := newFakeStore("1234")
	bio := &fakeBiometric{hardware: true, enrolled: true, result: biometric.Success}
	c := New(store, bio, WithPrompt("Show me"))

	out, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRevealed, out)
	assert.True(t, c.Revealed())
	assert.False(t, c.Dialog().Visible)
	assert.Equal(t, []string{"Show me"}, bio.prompts)
}

func TestRequestReveal_FallsBackToPIN(t *testing.T) {
	tests := []struct {
		name string
		bio  *fakeBiometric
	}{
		{name: "no hardware", bio: &fakeBiometric{hardware: false, enrolled: true}},
		{name: "not enrolled", bio: &fakeBiometric{hardware: true, enrolled: false}},
		{name: "user cancelled", bio: &fakeBiometric{hardware: true, enrolled: true, result: biometric.Cancelled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(newFakeStore("1234"), tt.bio)

			out, err := c.RequestReveal(context.Background())
			require.NoError(t, err)
			assert.Equal(t, OutcomeDialogOpened, out)
			assert.False(t, c.Revealed())

			v := c.Dialog()
			assert.True(t, v.Visible)
			assert.Equal(t, pin.ModeVerify, v.Mode)
		})
	}
}

func TestRequestReveal_CancelOpensVerifyOnce(t *testing.T) {
	bio := &fakeBiometric{hardware: true, enrolled: true, result: biometric.Cancelled}
	c := New(newFakeStore("1234"), bio)

	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)

	// A second request while the dialog is up must not prompt again.
	out, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDialogOpened, out)
	assert.Len(t, bio.prompts, 1)
	assert.Equal(t, pin.ModeVerify, c.Dialog().Mode)
	assert.False(t, c.Revealed())
}

func TestRequestReveal_OtherBiometricFailure(t *testing.T) {
	bio := &fakeBiometric{hardware: true, enrolled: true, result: biometric.Failed}
	c := New(newFakeStore("1234"), bio)

	out, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out)
	assert.Equal(t, MsgAuthFailed, c.Notice())
	assert.False(t, c.Dialog().Visible, "no fallback dialog")
	assert.False(t, c.Revealed())

	c.ClearNotice()
	assert.Empty(t, c.Notice())
}

func TestRequestReveal_BiometricQueryError(t *testing.T) {
	bio := &fakeBiometric{err: errors.New("sensor busy")}
	c := New(newFakeStore("1234"), bio)

	out, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out)
	assert.Equal(t, MsgAuthError, c.Notice())
	assert.False(t, c.Revealed())
}

func TestRequestReveal_HideNeedsNoAuthorization(t *testing.T) {
	store := newFakeStore("")
	bio := &fakeBiometric{hardware: true, enrolled: true, result: biometric.Success}
	c := New(store, bio)

	c.SetInput("0000")
	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	submitCode(t, c, "4321")
	submitCode(t, c, "4321")
	require.True(t, c.Revealed())

	storeCalls, bioCalls := store.calls(), bio.calls()
	for i := 0; i < 3; i++ {
		out, err := c.RequestReveal(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeHidden, out)
		assert.False(t, c.Revealed())
		assert.Equal(t, storeCalls, store.calls())
		assert.Equal(t, bioCalls, bio.calls())

		// Reveal again by biometric so the next iteration has something to hide.
		out, err = c.RequestReveal(context.Background())
		require.NoError(t, err)
		require.Equal(t, OutcomeRevealed, out)
		storeCalls, bioCalls = store.calls(), bio.calls()
	}
}

func TestRequestReveal_NoPINOpensCreate(t *testing.T) {
	bios := map[string]*fakeBiometric{
		"biometric ready":   {hardware: true, enrolled: true, result: biometric.Success},
		"biometric missing": {},
	}

	for name, bio := range bios {
		t.Run(name, func(t *testing.T) {
			c := New(newFakeStore(""), bio)

			out, err := c.RequestReveal(context.Background())
			require.NoError(t, err)
			assert.Equal(t, OutcomeDialogOpened, out)
			assert.Equal(t, pin.ModeCreate, c.Dialog().Mode)
			assert.Equal(t, pin.StepEnter, c.Dialog().Step)
			assert.Zero(t, bio.calls(), "create mode skips biometrics")
		})
	}
}

func TestRequestReveal_StoreReadFailure(t *testing.T) {
	store := newFakeStore("1234")
	store.getErr = errDisk
	c := New(store, &fakeBiometric{hardware: true, enrolled: true, result: biometric.Success})

	out, err := c.RequestReveal(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, errDisk)
	assert.Equal(t, OutcomeFailed, out)
	assert.False(t, c.Revealed())
	assert.NotEmpty(t, c.Notice())
}

func TestOnDialogVerify_MatchReveals(t *testing.T) {
	for _, code := range []string{"0000", "0427", "1234", "9999"} {
		t.Run(code, func(t *testing.T) {
			c := New(newFakeStore(code), biometric.Unavailable{})
			_, err := c.RequestReveal(context.Background())
			require.NoError(t, err)

			ev := submitCode(t, c, code)
			assert.Equal(t, pin.VerifyRequested{Code: code}, ev)
			assert.True(t, c.Revealed())
			assert.False(t, c.Dialog().Visible)
		})
	}
}

func TestOnDialogVerify_MismatchKeepsDialog(t *testing.T) {
	const stored = "1234"
	c := New(newFakeStore(stored), biometric.Unavailable{})

	for i := 0; i < 10000; i += 379 {
		code := fmt.Sprintf("%04d", i)
		if code == stored {
			continue
		}
		_, err := c.RequestReveal(context.Background())
		require.NoError(t, err)

		submitCode(t, c, code)
		v := c.Dialog()
		assert.False(t, c.Revealed(), code)
		assert.True(t, v.Visible, code)
		assert.Equal(t, MsgIncorrectPIN, v.Error, code)
		assert.Empty(t, v.Input, code)
	}
}

func TestOnDialogVerify_StoreFailure(t *testing.T) {
	store := newFakeStore("1234")
	c := New(store, biometric.Unavailable{})
	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)

	store.getErr = errDisk
	c.SetInput("1234")
	_, err = c.SubmitDialog(context.Background())
	assert.ErrorIs(t, err, ErrStorage)

	v := c.Dialog()
	assert.True(t, v.Visible)
	assert.Equal(t, MsgStoreFailure, v.Error)
	assert.False(t, c.Revealed())
}

func TestCreateFlow_ConfirmMatch(t *testing.T) {
	store := newFakeStore("")
	c := New(store, biometric.Unavailable{})
	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pin.Advanced{}, submitCode(t, c, "2468"))
	assert.Zero(t, store.sets, "no write before confirmation")
	assert.Equal(t, pin.StepConfirm, c.Dialog().Step)

	assert.Equal(t, pin.CreateRequested{Code: "2468"}, submitCode(t, c, "2468"))
	assert.Equal(t, "2468", store.lastSet)
	assert.True(t, c.Revealed())
	assert.False(t, c.Dialog().Visible)
}

func TestCreateFlow_ConfirmMismatch(t *testing.T) {
	store := newFakeStore("")
	c := New(store, biometric.Unavailable{})
	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)

	submitCode(t, c, "1234")
	assert.Equal(t, pin.ConfirmMismatch{}, submitCode(t, c, "5678"))

	v := c.Dialog()
	assert.True(t, v.Visible)
	assert.Equal(t, pin.ModeCreate, v.Mode)
	assert.Equal(t, pin.StepEnter, v.Step)
	assert.Empty(t, v.Input)
	assert.False(t, c.Revealed())
	assert.Zero(t, store.sets)
}

func TestCreateFlow_WriteFailure(t *testing.T) {
	store := newFakeStore("")
	store.setErr = errDisk
	c := New(store, biometric.Unavailable{})
	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)

	submitCode(t, c, "1357")
	c.SetInput("1357")
	_, err = c.SubmitDialog(context.Background())
	assert.ErrorIs(t, err, ErrStorage)

	v := c.Dialog()
	assert.True(t, v.Visible)
	assert.Equal(t, MsgStoreFailure, v.Error)
	assert.Equal(t, pin.StepEnter, v.Step)
	assert.False(t, c.Revealed())
}

func TestOnDialogCreate_RejectsMalformed(t *testing.T) {
	store := newFakeStore("")
	c := New(store, nil)
	_, err := c.EnsurePIN(context.Background())
	require.NoError(t, err)

	err = c.OnDialogCreate(context.Background(), "12a4")
	assert.ErrorIs(t, err, pin.ErrInvalidPIN)
	assert.Zero(t, store.sets)
	assert.False(t, c.Revealed())

	v := c.Dialog()
	assert.True(t, v.Visible)
	assert.Equal(t, MsgInvalidPIN, v.Error)
}

func TestOnDialogCreate_RequiresCreateFlow(t *testing.T) {
	store := newFakeStore("1111")
	c := New(store, biometric.Unavailable{})
	out, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeDialogOpened, out)
	require.Equal(t, pin.ModeVerify, c.Dialog().Mode)

	err = c.OnDialogCreate(context.Background(), "9999")
	assert.ErrorIs(t, err, ErrWrongFlow)
	assert.Equal(t, "1111", store.values[PINKey])
	assert.Zero(t, store.sets)
	assert.False(t, c.Revealed())
	assert.Equal(t, pin.ModeVerify, c.Dialog().Mode)
	assert.False(t, c.Busy())

	// The verify flow still works afterwards.
	submitCode(t, c, "1111")
	assert.True(t, c.Revealed())
}

func TestDialogResults_RequireOpenDialog(t *testing.T) {
	tests := []struct {
		name string
		call func(*Controller) error
	}{
		{name: "create", call: func(c *Controller) error { return c.OnDialogCreate(context.Background(), "2222") }},
		{name: "verify", call: func(c *Controller) error { return c.OnDialogVerify(context.Background(), "1111") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("1111")
			c := New(store, biometric.Unavailable{})

			assert.ErrorIs(t, tt.call(c), ErrWrongFlow)
			assert.False(t, c.Revealed())
			assert.Equal(t, "1111", store.values[PINKey])
			assert.Zero(t, store.calls())
		})
	}
}

func TestOnDialogVerify_WrongModeAfterEnsurePIN(t *testing.T) {
	store := newFakeStore("")
	c := New(store, nil)
	_, err := c.EnsurePIN(context.Background())
	require.NoError(t, err)

	err = c.OnDialogVerify(context.Background(), "0000")
	assert.ErrorIs(t, err, ErrWrongFlow)
	assert.False(t, c.Revealed())
	assert.Equal(t, pin.ModeCreate, c.Dialog().Mode)
}

func TestCancelDialog_NoSideEffects(t *testing.T) {
	store := newFakeStore("")
	c := New(store, biometric.Unavailable{})
	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	submitCode(t, c, "1111")

	c.CancelDialog()
	assert.False(t, c.Dialog().Visible)
	assert.False(t, c.Revealed())
	assert.Zero(t, store.sets)

	// The next request starts the create flow from scratch.
	_, err = c.RequestReveal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pin.StepEnter, c.Dialog().Step)
}

func TestTeardown(t *testing.T) {
	c := New(newFakeStore("1234"), &fakeBiometric{hardware: true, enrolled: true, result: biometric.Success})
	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	require.True(t, c.Revealed())

	c.Teardown()
	assert.False(t, c.Revealed())
	assert.False(t, c.Dialog().Visible)
}

func TestEnsurePIN(t *testing.T) {
	c := New(newFakeStore("1234"), nil)
	ok, err := c.EnsurePIN(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, c.Dialog().Visible)

	c = New(newFakeStore(""), nil)
	ok, err = c.EnsurePIN(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, pin.ModeCreate, c.Dialog().Mode)

	failing := newFakeStore("")
	failing.getErr = errDisk
	c = New(failing, nil)
	_, err = c.EnsurePIN(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, pin.ModeCreate, c.Dialog().Mode)
}

type blockingBiometric struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBiometric) HasHardware(context.Context) (bool, error) { return true, nil }
func (b *blockingBiometric) IsEnrolled(context.Context) (bool, error)  { return true, nil }
func (b *blockingBiometric) Authenticate(context.Context, string) (biometric.Result, error) {
	close(b.entered)
	<-b.release
	return biometric.Success, nil
}

func TestRequestReveal_RejectsOverlap(t *testing.T) {
	bio := &blockingBiometric{entered: make(chan struct{}), release: make(chan struct{})}
	c := New(newFakeStore("1234"), bio)

	done := make(chan Outcome)
	go func() {
		out, _ := c.RequestReveal(context.Background())
		done <- out
	}()
	<-bio.entered

	assert.True(t, c.Busy())
	_, err := c.RequestReveal(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, c.Revealed(), "readable while the prompt is up")

	close(bio.release)
	assert.Equal(t, OutcomeRevealed, <-done)
	assert.True(t, c.Revealed())
	assert.False(t, c.Busy())
}

// slowStore blocks in Get or Set once armed, until release is closed.
type slowStore struct {
	*fakeStore
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func newSlowStore(pinValue string) *slowStore {
	return &slowStore{
		fakeStore: newFakeStore(pinValue),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (s *slowStore) wait() {
	if s.armed {
		close(s.entered)
		<-s.release
	}
}

func (s *slowStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.wait()
	return s.fakeStore.Get(ctx, key)
}

func (s *slowStore) Set(ctx context.Context, key, value string) error {
	s.wait()
	return s.fakeStore.Set(ctx, key, value)
}

func TestCancelDialog_DuringVerifyDoesNotReveal(t *testing.T) {
	store := newSlowStore("1234")
	c := New(store, biometric.Unavailable{})
	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	c.SetInput("1234")

	store.armed = true
	done := make(chan error)
	go func() {
		_, err := c.SubmitDialog(context.Background())
		done <- err
	}()
	<-store.entered

	c.CancelDialog()
	close(store.release)
	require.NoError(t, <-done)

	assert.False(t, c.Revealed())
	assert.False(t, c.Dialog().Visible)
	assert.False(t, c.Busy())
}

func TestCancelDialog_DuringCreateDoesNotReveal(t *testing.T) {
	store := newSlowStore("")
	c := New(store, biometric.Unavailable{})
	_, err := c.RequestReveal(context.Background())
	require.NoError(t, err)
	submitCode(t, c, "2468")
	c.SetInput("2468")

	store.armed = true
	done := make(chan error)
	go func() {
		_, err := c.SubmitDialog(context.Background())
		done <- err
	}()
	<-store.entered

	c.CancelDialog()
	close(store.release)
	require.NoError(t, <-done)

	assert.False(t, c.Revealed())
	assert.False(t, c.Dialog().Visible)
}

func TestTeardown_DuringBiometricDoesNotReveal(t *testing.T) {
	bio := &blockingBiometric{entered: make(chan struct{}), release: make(chan struct{})}
	c := New(newFakeStore("1234"), bio)

	done := make(chan Outcome)
	go func() {
		out, _ := c.RequestReveal(context.Background())
		done <- out
	}()
	<-bio.entered

	c.Teardown()
	close(bio.release)

	assert.Equal(t, OutcomeFailed, <-done)
	assert.False(t, c.Revealed())
	assert.False(t, c.Busy())
}
