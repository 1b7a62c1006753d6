// Package tui provides an interactive storefront using Bubble Tea.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joss/storefront/internal/app"
	"github.com/joss/storefront/internal/audit"
	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/metrics"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)
)

// View represents the current view mode
type View int

const (
	ViewProducts View = iota
	ViewCart
	ViewOrders
	ViewLogin
	ViewCheckout
	ViewHelp
)

// Options configures the TUI.
type Options struct {
	App     *app.App
	Metrics *metrics.Metrics
	Audit   *audit.Logger
	// Timeout bounds each action started from the UI.
	Timeout time.Duration
}

// Model is the main TUI model
type Model struct {
	app     *app.App
	metrics *metrics.Metrics
	audit   *audit.Logger
	ctx     context.Context
	timeout time.Duration

	// State
	view     View
	products []domain.Product
	orders   []domain.Order
	filter   string
	cursor   int
	busy     int
	note     string
	err      error
	ready    bool
	quitting bool

	// Components
	spinner  spinner.Model
	filterIn textinput.Model
	email    textinput.Model
	password textinput.Model
	address  textinput.Model
	viewport viewport.Model
	width    int
	height   int
}

// Message types
type productsMsg struct{ err error }
type cartMsg struct{ err error }
type ordersMsg struct {
	orders []domain.Order
	err    error
}
type doneMsg struct {
	note string
	err  error
	then tea.Cmd
}
type tickMsg time.Time

// New creates a new TUI model. ctx bounds every request the model issues.
func New(ctx context.Context, opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	filterIn := textinput.New()
	filterIn.Placeholder = "filter (glob, e.g. *mug*)"
	filterIn.CharLimit = 100
	filterIn.Width = 40

	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 200
	email.Width = 40

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 200
	password.Width = 40

	address := textinput.New()
	address.Placeholder = "shipping address"
	address.CharLimit = 300
	address.Width = 60

	m := opts.Metrics
	if m == nil {
		m = metrics.Global()
	}
	al := opts.Audit
	if al == nil {
		al = audit.NewLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	busy := 1
	if opts.App.IsAuthenticated() {
		busy++
	}

	return Model{
		busy:     busy,
		app:      opts.App,
		metrics:  m,
		audit:    al,
		ctx:      ctx,
		timeout:  timeout,
		view:     ViewProducts,
		spinner:  s,
		filterIn: filterIn,
		email:    email,
		password: password,
		address:  address,
	}
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.refreshProducts(), tickCmd()}
	if m.app.IsAuthenticated() {
		cmds = append(cmds, m.fetchCart())
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		headerHeight := 5
		footerHeight := 4
		m.viewport = viewport.New(max(msg.Width-4, 10), max(msg.Height-headerHeight-footerHeight, 3))
		m.viewport.SetContent(m.ordersContent())

	case productsMsg:
		m.settle()
		m.err = msg.err
		m.applyFilter()

	case cartMsg:
		m.settle()
		m.err = msg.err
		m.clampCursor()

	case ordersMsg:
		m.settle()
		m.err = msg.err
		if msg.err == nil {
			m.orders = msg.orders
		}
		m.viewport.SetContent(m.ordersContent())

	case doneMsg:
		m.settle()
		m.err = msg.err
		if msg.err == nil {
			m.note = msg.note
			m.applyFilter()
			m.clampCursor()
		}
		if msg.then != nil {
			m.busy++
			cmds = append(cmds, msg.then)
		}

	case tickMsg:
		cmds = append(cmds, tickCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.view == ViewOrders {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.view {
	case ViewLogin:
		return m.handleLoginKey(msg)
	case ViewCheckout:
		return m.handleCheckoutKey(msg)
	case ViewHelp:
		m.view = ViewProducts
		return m, nil
	case ViewOrders:
		if k := msg.String(); k != "esc" && k != "q" {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	if m.filterIn.Focused() {
		switch msg.String() {
		case "enter", "esc":
			m.filterIn.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filterIn, cmd = m.filterIn.Update(msg)
		m.filter = m.filterIn.Value()
		m.applyFilter()
		return m, cmd
	}

	switch msg.String() {
	case "q":
		if m.view == ViewProducts {
			m.quitting = true
			return m, tea.Quit
		}
		m.view = ViewProducts
		m.cursor = 0
	case "esc":
		m.view = ViewProducts
		m.cursor = 0
		m.note, m.err = "", nil
	case "?":
		m.view = ViewHelp
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < m.listLen()-1 {
			m.cursor++
		}
	case "/":
		if m.view == ViewProducts {
			m.filterIn.Focus()
			return m, textinput.Blink
		}
	case "r":
		m.busy++
		if m.view == ViewCart {
			return m, m.fetchCart()
		}
		return m, m.refreshProducts()
	case "c":
		m.view = ViewCart
		m.cursor = 0
		if m.app.IsAuthenticated() {
			m.busy++
			return m, m.fetchCart()
		}
	case "o":
		m.view = ViewOrders
		m.busy++
		return m, m.listOrders()
	case "l":
		if m.app.IsAuthenticated() {
			m.busy++
			return m, m.logout()
		}
		m.view = ViewLogin
		m.email.Focus()
		return m, textinput.Blink
	case "a", "enter":
		if m.view == ViewProducts && len(m.products) > 0 {
			m.busy++
			return m, m.addToCart(m.products[m.cursor])
		}
	case "d", "x":
		if m.view == ViewCart {
			items := m.app.Cart().Items()
			if len(items) > 0 {
				m.busy++
				return m, m.removeFromCart(items[m.cursor].Product)
			}
		}
	case "p":
		if m.view == ViewCart && m.app.CartCount() > 0 {
			m.view = ViewCheckout
			m.address.Focus()
			return m, textinput.Blink
		}
	}
	return m, nil
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = ViewProducts
		m.email.Blur()
		m.password.Blur()
		m.password.SetValue("")
		return m, nil
	case "tab", "shift+tab", "up", "down":
		if m.email.Focused() {
			m.email.Blur()
			m.password.Focus()
		} else {
			m.password.Blur()
			m.email.Focus()
		}
		return m, textinput.Blink
	case "enter":
		if m.email.Focused() {
			m.email.Blur()
			m.password.Focus()
			return m, textinput.Blink
		}
		email, password := m.email.Value(), m.password.Value()
		m.password.SetValue("")
		m.password.Blur()
		m.view = ViewProducts
		m.busy++
		return m, m.login(email, password)
	}

	var cmd tea.Cmd
	if m.email.Focused() {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) handleCheckoutKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = ViewCart
		m.address.Blur()
		return m, nil
	case "enter":
		address := m.address.Value()
		m.address.Blur()
		m.view = ViewCart
		m.busy++
		return m, m.checkout(address)
	}

	var cmd tea.Cmd
	m.address, cmd = m.address.Update(msg)
	return m, cmd
}

// applyFilter recomputes the visible products. A bad pattern shows all.
func (m *Model) applyFilter() {
	products, err := m.app.Catalog().Filter(m.filter)
	if err != nil {
		products = m.app.Catalog().Products()
	}
	m.products = products
	m.clampCursor()
}

func (m Model) listLen() int {
	switch m.view {
	case ViewCart:
		return len(m.app.Cart().Items())
	case ViewProducts:
		return len(m.products)
	}
	return 0
}

func (m *Model) settle() {
	if m.busy > 0 {
		m.busy--
	}
}

func (m *Model) clampCursor() {
	n := m.listLen()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
