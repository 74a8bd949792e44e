package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fahmaliyi/pinguard/ledger"
	"github.com/fahmaliyi/pinguard/pin"
	"github.com/fahmaliyi/pinguard/reveal"
)

type screen int

const (
	screenWelcome screen = iota
	screenTransactions
	screenDetail
)

type model struct {
	ctx context.Context
	app *App

	// gate guards entry from the welcome screen; balance owns the
	// transactions screen's show/hide toggle.
	gate    *reveal.Controller
	balance *reveal.Controller

	screen   screen
	pinInput textinput.Model
	spinner  spinner.Model
	busy     bool

	overview ledger.Overview
	loaded   bool
	cursor   int
	selected *ledger.Transaction

	msg         string
	err         string
	clipToken   int
	clipPending bool
}

type (
	pinCheckedMsg struct{ err error }
	revealMsg     struct {
		outcome reveal.Outcome
		err     error
	}
	dialogDoneMsg struct {
		ev  pin.Event
		err error
	}
	overviewMsg struct {
		ov  ledger.Overview
		err error
	}
	refreshMsg struct {
		page ledger.TransactionPage
		err  error
	}
	detailMsg struct {
		txn ledger.Transaction
		err error
	}
	clipboardClearMsg struct{ token int }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	msgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("0"))
	balanceStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dialogStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
)

func newModel(ctx context.Context, app *App) model {
	ti := textinput.New()
	ti.Placeholder = "Enter 4-digit PIN"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = pin.Length
	ti.Focus()

	return model{
		ctx:      ctx,
		app:      app,
		gate:     app.NewController("welcome"),
		balance:  app.NewController("transactions"),
		screen:   screenWelcome,
		pinInput: ti,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// RunTUI starts the interactive TUI and blocks until it exits.
func RunTUI(ctx context.Context, app *App) error {
	m := newModel(ctx, app)
	defer m.gate.Teardown()
	defer m.balance.Teardown()

	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	final, err := p.Run()
	clearPendingClipboard(final)
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

// clearPendingClipboard clears a copied id whose timer died with the
// program.
func clearPendingClipboard(final tea.Model) {
	if m, ok := final.(model); ok && m.clipPending {
		_ = writeClipboard("")
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.checkPIN(), m.spinner.Tick)
}

// active is the controller whose dialog the current screen shows.
func (m model) active() *reveal.Controller {
	if m.screen == screenWelcome {
		return m.gate
	}
	return m.balance
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pinCheckedMsg:
		if msg.err != nil {
			m.err = "Could not read the stored PIN. Set a new one to continue."
		}
		m.syncInput()
		return m, nil

	case revealMsg:
		m.busy = false
		return m.afterReveal(msg)

	case dialogDoneMsg:
		m.busy = false
		return m.afterDialog(msg)

	case overviewMsg:
		m.busy = false
		if msg.err != nil {
			m.err = ledger.Message(msg.err, "An unexpected error occurred")
			return m, nil
		}
		m.overview, m.loaded, m.err = msg.ov, true, ""
		m.cursor = 0
		return m, nil

	case refreshMsg:
		m.busy = false
		if msg.err != nil {
			m.err = ledger.Message(msg.err, "Failed to refresh transactions")
			return m, nil
		}
		m.overview.Page, m.err = msg.page, ""
		m.cursor = 0
		return m, nil

	case detailMsg:
		m.busy = false
		if msg.err != nil {
			m.err = ledger.Message(msg.err, "Failed to load transaction details")
			return m, nil
		}
		txn := msg.txn
		m.selected, m.screen, m.err = &txn, screenDetail, ""
		return m, nil

	case clipboardClearMsg:
		if msg.token == m.clipToken && m.clipPending {
			_ = writeClipboard("")
			m.msg = ""
			m.clipPending = false
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.active().Dialog().Visible {
			return m.updateDialog(msg)
		}
		if m.busy {
			return m, nil
		}
		switch m.screen {
		case screenWelcome:
			return m.updateWelcome(msg)
		case screenTransactions:
			return m.updateTransactions(msg)
		case screenDetail:
			return m.updateDetail(msg)
		}
	}
	return m, nil
}

func (m model) View() string {
	var body string
	switch m.screen {
	case screenWelcome:
		body = m.viewWelcome()
	case screenTransactions:
		body = m.viewTransactions()
	case screenDetail:
		body = m.viewDetail()
	}
	if v := m.active().Dialog(); v.Visible {
		body += "\n\n" + m.viewDialog(v)
	}
	if m.busy {
		body += "\n" + m.spinner.View() + " Working..."
	}
	return body
}

// --- Commands ---

func (m model) checkPIN() tea.Cmd {
	ctx, c := m.ctx, m.gate
	return func() tea.Msg {
		_, err := c.EnsurePIN(ctx)
		return pinCheckedMsg{err: err}
	}
}

func (m model) requestReveal(c *reveal.Controller) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		out, err := c.RequestReveal(ctx)
		return revealMsg{outcome: out, err: err}
	}
}

func (m model) submitDialog(c *reveal.Controller) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		ev, err := c.SubmitDialog(ctx)
		return dialogDoneMsg{ev: ev, err: err}
	}
}

func (m model) loadOverview() tea.Cmd {
	ctx, p, limit := m.ctx, m.app.Provider, m.app.Config.TransactionLimit
	return func() tea.Msg {
		ov, err := ledger.LoadOverview(ctx, p, ledger.Query{Limit: limit})
		return overviewMsg{ov: ov, err: err}
	}
}

func (m model) refresh() tea.Cmd {
	ctx, p := m.ctx, m.app.Provider
	return func() tea.Msg {
		page, err := p.Refresh(ctx)
		return refreshMsg{page: page, err: err}
	}
}

func (m model) loadDetail(id string) tea.Cmd {
	ctx, p := m.ctx, m.app.Provider
	return func() tea.Msg {
		txn, err := p.Transaction(ctx, id)
		return detailMsg{txn: txn, err: err}
	}
}

// --- Reveal results ---

func (m model) afterReveal(msg revealMsg) (model, tea.Cmd) {
	c := m.active()
	if msg.err != nil && !errors.Is(msg.err, reveal.ErrStorage) && !errors.Is(msg.err, reveal.ErrBusy) {
		m.app.Logger.Error("reveal request failed", "error", msg.err)
	}
	m.err = c.Notice()
	m.syncInput()
	if m.screen == screenWelcome && c.Revealed() {
		return m.enterTransactions()
	}
	return m, nil
}

func (m model) afterDialog(msg dialogDoneMsg) (model, tea.Cmd) {
	if msg.err != nil && !errors.Is(msg.err, reveal.ErrStorage) {
		m.app.Logger.Warn("pin dialog submit failed", "error", msg.err)
	}
	m.syncInput()
	if m.screen == screenWelcome && m.gate.Revealed() {
		return m.enterTransactions()
	}
	return m, nil
}

func (m model) enterTransactions() (model, tea.Cmd) {
	m.screen = screenTransactions
	m.err = ""
	if m.loaded {
		return m, nil
	}
	m.busy = true
	return m, m.loadOverview()
}

// syncInput mirrors the active dialog's field into the text input.
func (m *model) syncInput() {
	m.pinInput.SetValue(m.active().Dialog().Input)
	m.pinInput.CursorEnd()
}

// --- Dialog ---

func (m model) updateDialog(msg tea.KeyMsg) (model, tea.Cmd) {
	c := m.active()
	if m.busy {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyEsc:
		c.CancelDialog()
	case tea.KeyBackspace:
		c.Backspace()
	case tea.KeyEnter:
		if c.Dialog().CanSubmit {
			m.busy = true
			return m, m.submitDialog(c)
		}
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			c.Type(r)
		}
	}
	m.syncInput()
	return m, nil
}

func (m model) viewDialog(v pin.View) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(v.Title) + "\n\n")
	if v.Mode == pin.ModeCreate && v.Step == pin.StepEnter {
		b.WriteString(dimStyle.Render("Choose a 4-digit PIN to protect your balance.") + "\n\n")
	}
	b.WriteString(m.pinInput.View() + "\n")
	if v.Error != "" {
		b.WriteString("\n" + errStyle.Render(v.Error) + "\n")
	}
	submit := v.SubmitLabel
	if !v.CanSubmit {
		submit = dimStyle.Render(submit)
	}
	b.WriteString(fmt.Sprintf("\nenter=%s  esc=Cancel", submit))
	return dialogStyle.Render(b.String())
}

// --- Welcome ---

func (m model) updateWelcome(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "enter", " ":
		if m.gate.Revealed() {
			return m.enterTransactions()
		}
		m.busy = true
		m.err = ""
		return m, m.requestReveal(m.gate)
	}
	return m, nil
}

func (m model) viewWelcome() string {
	s := titleStyle.Render("PinGuard") + "\n\n"
	s += "Your balance and transactions stay hidden until you unlock them.\n"
	if m.err != "" {
		s += "\n" + errStyle.Render(m.err) + "\n"
	}
	s += "\nCommands: enter=Get Started, q=quit"
	return s
}

// --- Transactions ---

func (m model) updateTransactions(msg tea.KeyMsg) (model, tea.Cmd) {
	txns := m.overview.Page.Transactions
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.gate.Teardown()
		m.balance.Teardown()
		m.screen = screenWelcome
		m.err = ""
	case "j", "down":
		if m.cursor < len(txns)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "b":
		m.busy = true
		m.err = ""
		return m, m.requestReveal(m.balance)
	case "r":
		m.busy = true
		if !m.loaded {
			return m, m.loadOverview()
		}
		return m, m.refresh()
	case "enter":
		if len(txns) > 0 {
			m.busy = true
			return m, m.loadDetail(txns[m.cursor].ID)
		}
	case "c":
		if len(txns) > 0 {
			return m.copyID(txns[m.cursor].ID)
		}
	}
	return m, nil
}

func (m model) viewTransactions() string {
	revealed := m.balance.Revealed()
	s := titleStyle.Render("Transactions") + "\n\n"
	if m.loaded {
		b := m.overview.Balance
		s += "Available Balance: " + balanceStyle.Render(masked(revealed, ledger.RevealAmount(b.Available), "****")) + "\n"
		if b.Pending > 0 {
			s += dimStyle.Render("Pending: "+masked(revealed, "-"+ledger.RevealAmount(b.Pending), "****")) + "\n"
		}
		s += "\n"

		i := 0
		for _, g := range ledger.GroupByDate(m.overview.Page.Transactions) {
			s += dimStyle.Render(g.Label) + "\n"
			for _, t := range g.Transactions {
				line := "  " + spentLine(t, revealed)
				if i == m.cursor {
					line = selectedStyle.Render(line)
				}
				s += line + "\n"
				i++
			}
		}
		if i == 0 {
			s += dimStyle.Render("No transactions yet.") + "\n"
		}
	}
	if m.err != "" {
		s += "\n" + errStyle.Render(m.err)
	}
	if m.msg != "" {
		s += "\n" + msgStyle.Render(m.msg)
	}
	toggle := "show"
	if revealed {
		toggle = "hide"
	}
	s += fmt.Sprintf("\nCommands: b=%s balance, j/k=move, enter=details, c=copy id, r=refresh, esc=back, q=quit", toggle)
	return s
}

// --- Detail ---

func (m model) updateDetail(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.screen = screenTransactions
		m.selected = nil
	case "c":
		if m.selected != nil {
			return m.copyID(m.selected.ID)
		}
	}
	return m, nil
}

func (m model) viewDetail() string {
	if m.selected == nil {
		return ""
	}
	s := titleStyle.Render("Transaction Details") + "\n\n"
	s += detailText(*m.selected, m.balance.Revealed())
	if m.msg != "" {
		s += "\n" + msgStyle.Render(m.msg)
	}
	s += "\nCommands: c=copy id, esc=back, q=quit"
	return s
}

func (m model) copyID(id string) (model, tea.Cmd) {
	if err := writeClipboard(id); err != nil {
		m.err = "Clipboard unavailable"
		return m, nil
	}
	m.clipToken++
	m.clipPending = true
	token := m.clipToken
	wait := m.app.Config.ClipboardClear
	m.msg = fmt.Sprintf("Transaction ID copied! (clears in %s)", wait)
	return m, tea.Tick(wait, func(time.Time) tea.Msg {
		return clipboardClearMsg{token: token}
	})
}
