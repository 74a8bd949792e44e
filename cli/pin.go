package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/fahmaliyi/pinguard/reveal"
)

// Confirmer asks a yes/no question.
type Confirmer func(title string) (bool, error)

// HuhConfirm asks on the terminal with a huh confirm field.
func HuhConfirm(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// PINStatus prints whether a PIN has been set.
func PINStatus(ctx context.Context, app *App, out io.Writer) error {
	ok, err := app.NewController("pin").HasPIN(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(out, "PIN is set.")
	} else {
		fmt.Fprintln(out, "No PIN set. One will be created on first use.")
	}
	return nil
}

// ResetPIN deletes the stored PIN after the user confirms and proves they
// know the current one.
func ResetPIN(ctx context.Context, app *App, confirm Confirmer, read LineReader, out io.Writer) error {
	ctrl := app.NewController("pin")
	defer ctrl.Teardown()

	ok, err := ctrl.HasPIN(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "No PIN set.")
		return nil
	}

	yes, err := confirm("Reset your PIN? You will be asked to create a new one on next use.")
	if err != nil {
		return err
	}
	if !yes {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	ctrl.OpenVerify()
	if err := RunDialog(ctx, ctrl, read, out); err != nil {
		return err
	}
	if !ctrl.Revealed() {
		fmt.Fprintln(out, "PIN not verified; nothing changed.")
		return nil
	}

	if err := app.Store.Delete(ctx, reveal.PINKey); err != nil {
		return fmt.Errorf("delete pin: %w", err)
	}
	app.Logger.Info("pin reset")
	fmt.Fprintln(out, "PIN removed.")
	return nil
}
