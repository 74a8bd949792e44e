package pin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "four digits", in: "0427"},
		{name: "all zeros", in: "0000"},
		{name: "too short", in: "123", wantErr: true},
		{name: "too long", in: "12345", wantErr: true},
		{name: "letters", in: "12a4", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "unicode digit", in: "12٣4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPIN)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func typeAll(d *Dialog, s string) {
	for _, r := range s {
		d.Type(r)
	}
}

func TestDialog_ZeroValueIsClosed(t *testing.T) {
	var d Dialog
	assert.False(t, d.Visible())
	assert.Equal(t, Mode(0), d.Mode())

	d.Type('1')
	assert.Empty(t, d.Input())

	_, err := d.Submit()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDialog_InputConstraints(t *testing.T) {
	var d Dialog
	d.Open(ModeVerify)

	typeAll(&d, "1a2 3-")
	assert.Equal(t, "123", d.Input())
	assert.False(t, d.CanSubmit())

	_, err := d.Submit()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, "123", d.Input(), "failed submit must not touch input")

	typeAll(&d, "45")
	assert.Equal(t, "1234", d.Input(), "fifth digit is dropped")
	assert.True(t, d.CanSubmit())

	d.Backspace()
	assert.Equal(t, "123", d.Input())

	d.SetInput("98x7654")
	assert.Equal(t, "9876", d.Input())
}

func TestDialog_VerifySubmit(t *testing.T) {
	var d Dialog
	d.Open(ModeVerify)
	typeAll(&d, "1234")

	ev, err := d.Submit()
	require.NoError(t, err)
	assert.Equal(t, VerifyRequested{Code: "1234"}, ev)
	assert.True(t, d.Visible(), "dialog waits for the owner's verdict")

	d.Fail("Incorrect PIN. Please try again.")
	assert.True(t, d.Visible())
	assert.Empty(t, d.Input())
	assert.Equal(t, "Incorrect PIN. Please try again.", d.Error())
	assert.Equal(t, ModeVerify, d.Mode())

	d.Type('5')
	assert.Empty(t, d.Error(), "typing clears the error")
}

func TestDialog_CreateConfirmMatch(t *testing.T) {
	var d Dialog
	d.Open(ModeCreate)
	assert.Equal(t, StepEnter, d.Step())

	typeAll(&d, "2580")
	ev, err := d.Submit()
	require.NoError(t, err)
	assert.Equal(t, Advanced{}, ev)
	assert.Equal(t, StepConfirm, d.Step())
	assert.Empty(t, d.Input(), "visible field is cleared for confirm")

	typeAll(&d, "2580")
	ev, err = d.Submit()
	require.NoError(t, err)
	assert.Equal(t, CreateRequested{Code: "2580"}, ev)
}

func TestDialog_CreateConfirmMismatch(t *testing.T) {
	var d Dialog
	d.Open(ModeCreate)

	typeAll(&d, "1234")
	_, err := d.Submit()
	require.NoError(t, err)

	typeAll(&d, "5678")
	ev, err := d.Submit()
	require.NoError(t, err)
	assert.Equal(t, ConfirmMismatch{}, ev)
	assert.Equal(t, ModeCreate, d.Mode())
	assert.Equal(t, StepEnter, d.Step())
	assert.Empty(t, d.Input())
	assert.Equal(t, MsgConfirmMismatch, d.Error())

	// The old pending value is gone: a fresh enter/confirm pair is required.
	typeAll(&d, "5678")
	ev, err = d.Submit()
	require.NoError(t, err)
	assert.Equal(t, Advanced{}, ev)
}

func TestDialog_FailDuringConfirmRestartsCreate(t *testing.T) {
	var d Dialog
	d.Open(ModeCreate)
	typeAll(&d, "1111")
	_, _ = d.Submit()
	typeAll(&d, "1111")
	_, _ = d.Submit()

	d.Fail("An error occurred. Please try again.")
	assert.Equal(t, StepEnter, d.Step())
	assert.Empty(t, d.Input())
}

func TestDialog_CancelResetsEveryPhase(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *Dialog)
	}{
		{name: "verify with input", setup: func(d *Dialog) {
			d.Open(ModeVerify)
			typeAll(d, "12")
		}},
		{name: "create enter", setup: func(d *Dialog) {
			d.Open(ModeCreate)
			typeAll(d, "999")
		}},
		{name: "create confirm", setup: func(d *Dialog) {
			d.Open(ModeCreate)
			typeAll(d, "9999")
			_, _ = d.Submit()
			typeAll(d, "99")
		}},
		{name: "verify with error", setup: func(d *Dialog) {
			d.Open(ModeVerify)
			d.Fail("nope")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Dialog
			tt.setup(&d)
			d.Cancel()

			assert.False(t, d.Visible())
			assert.Empty(t, d.Input())
			assert.Empty(t, d.Error())
			assert.Equal(t, Step(0), d.Step())

			d.Open(ModeCreate)
			assert.Equal(t, StepEnter, d.Step(), "reopen starts fresh")
		})
	}
}

func TestDialog_View(t *testing.T) {
	var d Dialog
	assert.False(t, d.View().Visible)

	d.Open(ModeCreate)
	v := d.View()
	assert.Equal(t, "Create PIN", v.Title)
	assert.Equal(t, "Next", v.SubmitLabel)
	assert.Equal(t, "Enter 4-digit PIN", v.Placeholder)

	typeAll(&d, "4321")
	assert.True(t, d.View().CanSubmit)
	_, _ = d.Submit()
	v = d.View()
	assert.Equal(t, "Confirm PIN", v.Title)
	assert.Equal(t, "Confirm", v.SubmitLabel)
	assert.False(t, v.CanSubmit)

	d.Open(ModeVerify)
	v = d.View()
	assert.Equal(t, "Enter PIN", v.Title)
	assert.Equal(t, "Confirm", v.SubmitLabel)
	assert.Equal(t, ModeVerify, v.Mode)
	assert.Equal(t, StepEnter, v.Step)
}
