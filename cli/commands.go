package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/fahmaliyi/pinguard/ledger"
	"github.com/fahmaliyi/pinguard/reveal"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// Shell is the line-mode interface: the same reveal rules as the TUI, one
// command per line.
type Shell struct {
	app  *App
	ctrl *reveal.Controller
	in   *bufio.Reader
	out  io.Writer
	pin  LineReader

	overview ledger.Overview
	loaded   bool
	idMap    map[int]string

	// clip is the pending clipboard clear, clipWrite the writer it uses.
	clip      *time.Timer
	clipWrite func(string) error
}

func NewShell(app *App, in io.Reader, out io.Writer, pinReader LineReader) *Shell {
	br := bufio.NewReader(in)
	if pinReader == nil {
		pinReader = PlainLineReader(br, out)
	}
	return &Shell{
		app:  app,
		ctrl: app.NewController("shell"),
		in:   br,
		out:  out,
		pin:  pinReader,
	}
}

// Run processes commands until q or EOF.
func (s *Shell) Run(ctx context.Context) error {
	defer s.ctrl.Teardown()
	defer s.flushClipboard()

	if ok, err := s.ctrl.EnsurePIN(ctx); err != nil || !ok {
		fmt.Fprintln(s.out, "No PIN found. Set up a 4-digit PIN to protect your balance.")
		if err := RunDialog(ctx, s.ctrl, s.pin, s.out); err != nil {
			return err
		}
	}
	s.load(ctx)

	for {
		fmt.Fprintln(s.out, "\nCommands: b=toggle balance, l=list, s N=show, c N=copy id, r=refresh, q=quit")
		fmt.Fprint(s.out, "> ")

		line, err := s.in.ReadString('\n')
		if err != nil && strings.TrimSpace(line) == "" {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "b":
			if err := s.toggle(ctx); err != nil {
				return err
			}
		case "l":
			s.list()
		case "r":
			s.refresh(ctx)
		case "s", "c":
			if len(parts) < 2 {
				fmt.Fprintln(s.out, "Specify item number")
				continue
			}
			var num int
			fmt.Sscanf(parts[1], "%d", &num)
			id, ok := s.idMap[num]
			if !ok {
				fmt.Fprintln(s.out, "Invalid item number (run l first)")
				continue
			}
			if cmd == "s" {
				s.show(ctx, id)
			} else {
				s.copy(id)
			}
		case "q":
			fmt.Fprintln(s.out, "Exiting.")
			return nil
		default:
			fmt.Fprintln(s.out, "Unknown command")
		}
	}
}

func (s *Shell) load(ctx context.Context) {
	ov, err := ledger.LoadOverview(ctx, s.app.Provider, ledger.Query{Limit: s.app.Config.TransactionLimit})
	if err != nil {
		s.app.Logger.Warn("load overview failed", "error", err)
		fmt.Fprintln(s.out, ledger.Message(err, "An unexpected error occurred"), "(r to retry)")
		return
	}
	s.overview, s.loaded = ov, true
	s.printBalance()
}

func (s *Shell) refresh(ctx context.Context) {
	if !s.loaded {
		s.load(ctx)
		return
	}
	page, err := s.app.Provider.Refresh(ctx)
	if err != nil {
		fmt.Fprintln(s.out, ledger.Message(err, "Failed to refresh transactions"))
		return
	}
	s.overview.Page = page
	s.idMap = nil
	fmt.Fprintf(s.out, "Loaded %d transactions.\n", len(page.Transactions))
}

func (s *Shell) toggle(ctx context.Context) error {
	out, err := s.ctrl.RequestReveal(ctx)
	if err != nil && !errors.Is(err, reveal.ErrStorage) {
		return err
	}
	if out == reveal.OutcomeDialogOpened {
		if err := RunDialog(ctx, s.ctrl, s.pin, s.out); err != nil {
			return err
		}
	}
	if n := s.ctrl.Notice(); n != "" {
		fmt.Fprintln(s.out, n)
		s.ctrl.ClearNotice()
	}
	s.printBalance()
	return nil
}

func (s *Shell) printBalance() {
	if !s.loaded {
		return
	}
	b := s.overview.Balance
	revealed := s.ctrl.Revealed()
	fmt.Fprintf(s.out, "Available Balance: %s\n", masked(revealed, ledger.RevealAmount(b.Available), "****"))
	if b.Pending > 0 {
		fmt.Fprintf(s.out, "Pending: %s\n", masked(revealed, "-"+ledger.RevealAmount(b.Pending), "****"))
	}
}

func (s *Shell) list() {
	if !s.loaded {
		fmt.Fprintln(s.out, "Nothing loaded (r to retry)")
		return
	}
	revealed := s.ctrl.Revealed()
	s.idMap = make(map[int]string)
	num := 0
	for _, g := range ledger.GroupByDate(s.overview.Page.Transactions) {
		fmt.Fprintln(s.out, g.Label)
		for _, t := range g.Transactions {
			num++
			s.idMap[num] = t.ID
			fmt.Fprintf(s.out, "%3d) %s\n", num, spentLine(t, revealed))
		}
	}
}

func (s *Shell) show(ctx context.Context, id string) {
	t, err := s.app.Provider.Transaction(ctx, id)
	if err != nil {
		fmt.Fprintln(s.out, ledger.Message(err, "Failed to load transaction details"))
		return
	}
	fmt.Fprint(s.out, detailText(t, s.ctrl.Revealed()))
}

func (s *Shell) copy(id string) {
	write := writeClipboard
	if err := write(id); err != nil {
		fmt.Fprintln(s.out, "Clipboard unavailable:", err)
		return
	}
	wait := s.app.Config.ClipboardClear
	fmt.Fprintf(s.out, "Transaction ID copied. Clearing in %s...\n", wait)
	if s.clip != nil {
		s.clip.Stop()
	}
	s.clip = time.AfterFunc(wait, func() { _ = write("") })
	s.clipWrite = write
}

// flushClipboard clears a copied id now if its timer has not fired yet.
func (s *Shell) flushClipboard() {
	if s.clip != nil && s.clip.Stop() {
		_ = s.clipWrite("")
	}
}

func masked(revealed bool, clear, hidden string) string {
	if revealed {
		return clear
	}
	return hidden
}

// spentLine renders "You spent X at Y", masking both when hidden.
func spentLine(t ledger.Transaction, revealed bool) string {
	amount := masked(revealed, ledger.RevealAmount(t.Amount), ledger.MaskAmount(t.Amount))
	merchant := masked(revealed, t.Merchant, ledger.MaskMerchant(t.Merchant))
	verb := "spent"
	if t.Kind == ledger.Credit {
		verb = "received"
	}
	return fmt.Sprintf("You %s %s at %s  (%s)", verb, amount, merchant, t.Category)
}

func detailText(t ledger.Transaction, revealed bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merchant: %s\n", masked(revealed, t.Merchant, ledger.MaskMerchant(t.Merchant)))
	fmt.Fprintf(&b, "Category: %s\n", t.Category)
	fmt.Fprintf(&b, "Amount:   %s\n", masked(revealed, ledger.Signed(t), ledger.MaskAmount(t.Amount)))
	fmt.Fprintf(&b, "Date:     %s\n", t.Date.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "Time:     %s\n", t.Date.Format("3:04 PM"))
	fmt.Fprintf(&b, "Type:     %s\n", strings.ToUpper(string(t.Kind[:1]))+string(t.Kind[1:]))
	fmt.Fprintf(&b, "Status:   Completed\n")
	fmt.Fprintf(&b, "ID:       %s\n", t.ID)
	return b.String()
}
