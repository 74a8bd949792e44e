package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fahmaliyi/pinguard/pin"
	"github.com/fahmaliyi/pinguard/reveal"
)

// RunDialog drives c's PIN dialog from line input until it closes. An
// aborted read cancels the dialog.
func RunDialog(ctx context.Context, c *reveal.Controller, read LineReader, out io.Writer) error {
	for {
		v := c.Dialog()
		if !v.Visible {
			return nil
		}
		if v.Error != "" {
			fmt.Fprintln(out, v.Error)
		}

		line, ok, err := read(fmt.Sprintf("%s (%s, Enter on empty to cancel): ", v.Title, v.Placeholder))
		if err != nil {
			c.CancelDialog()
			return err
		}
		if !ok {
			c.CancelDialog()
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}

		if pin.Validate(line) != nil {
			fmt.Fprintln(out, "PIN must be exactly 4 digits.")
			continue
		}
		c.SetInput(line)
		if _, err := c.SubmitDialog(ctx); err != nil && !errors.Is(err, reveal.ErrStorage) {
			c.CancelDialog()
			return err
		}
	}
}
