package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"customerterm/internal/config"
	"customerterm/internal/customers"
	"customerterm/internal/phone"
	"customerterm/internal/storage"
	"customerterm/internal/theme"
)

// Program wraps the Bubble Tea program lifecycle.
type Program struct {
	program *tea.Program
	model   *model
	logger  *log.Logger
}

// NewProgram constructs a new interactive session over store.
func NewProgram(store *storage.Store, cfg *config.Store, logger *log.Logger) *Program {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := newModel(store, cfg)
	p := tea.NewProgram(m)
	m.wire(store, bridge{send: p.Send}, phone.NewSystemDialer(), logger)
	return &Program{program: p, model: m, logger: logger}
}

// Start runs the program until the user quits. Save and delete requests are
// applied in the background for the lifetime of the program.
func (p *Program) Start() error {
	if p == nil || p.program == nil {
		return fmt.Errorf("nil program")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.listen(ctx)
	}()
	_, err := p.program.Run()
	cancel()
	<-done
	p.model.close()
	return err
}

func (p *Program) listen(ctx context.Context) {
	if err := p.model.coord.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Printf("listen: %v", err)
	}
}

type viewState int

const (
	stateList viewState = iota
	stateDetail
	stateSettings
)

type confirmation struct {
	prompt   customers.Prompt
	reply    chan bool
	onAccept tea.Cmd
	// popOnAccept leaves the current screen once the user accepts.
	popOnAccept bool
}

type model struct {
	state       viewState
	prevStates  []viewState
	importer    customerImporter
	cfg         *config.Store
	theme       theme.Theme
	width       int
	height      int
	infoMessage string
	errMessage  string

	coord        *customers.Coordinator
	dialer       customers.Dialer
	region       atomic.Value
	outcomes     <-chan customers.Outcome
	stopOutcomes func()
	phase        customers.Phase
	loaded       bool

	input    textinput.Model
	cursor   int
	filtered []customers.Customer

	confirm *confirmation
	detail  detailForm

	settings settingsModel
}

func newModel(store *storage.Store, cfg *config.Store) *model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "Type to filter, or a command (n, r, call 1, edit 2, delete 3, s, q)"
	ti.CharLimit = 96
	ti.Focus()

	m := &model{
		state:    stateList,
		cfg:      cfg,
		theme:    theme.Default(),
		input:    ti,
		settings: newSettingsModel(),
	}
	if store != nil {
		m.importer = store
	}
	m.region.Store(cfg.Config.Region)
	m.detail = newDetailForm(customers.Customer{})
	return m
}

// wire builds the coordinator once the program exists, since navigation and
// prompts are delivered through it.
func (m *model) wire(source customers.DataSource, b bridge, dialer customers.Dialer, logger *log.Logger) {
	m.dialer = dialer
	m.coord = customers.NewCoordinator(source,
		customers.WithNavigator(b),
		customers.WithPrompter(b),
		customers.WithDialer(dialer),
		customers.WithSanitizer(func(raw string) string {
			region, _ := m.region.Load().(string)
			return phone.Sanitize(raw, region)
		}),
		customers.WithLogger(logger),
	)
	m.coord.OnChange(b.phaseChanged)
	m.outcomes, m.stopOutcomes = m.coord.Outcomes(4)
}

func (m *model) close() {
	if m.stopOutcomes != nil {
		m.stopOutcomes()
	}
	if m.coord != nil {
		m.coord.Close()
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, loadCmd(m.coord, false), waitForOutcome(m.outcomes))
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.confirm != nil {
			return m, m.updateConfirm(msg)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case phaseMsg:
		m.phase = msg.phase
		return m, nil
	case loadedMsg:
		return m, m.handleLoaded(msg)
	case createdMsg:
		if msg.err != nil && !isBusy(msg.err) {
			m.errMessage = fmt.Sprintf("new customer: %v", msg.err)
		}
		return m, nil
	case pushDetailMsg:
		return m, m.openDetail(msg.screen.Customer)
	case confirmRequestMsg:
		m.confirm = &confirmation{prompt: msg.prompt, reply: msg.reply}
		return m, nil
	case dialedMsg:
		m.handleDialed(msg)
		return m, nil
	case importedMsg:
		m.handleImported(msg)
		return m, nil
	case publishedMsg:
		if msg.err != nil {
			m.errMessage = fmt.Sprintf("%s %s: %v", msg.kind, msg.customer.DisplayName, msg.err)
		}
		return m, nil
	case outcomeMsg:
		m.handleOutcome(msg.outcome)
		return m, waitForOutcome(m.outcomes)
	case outcomesClosedMsg:
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case stateList:
		cmd = m.updateList(msg)
	case stateDetail:
		cmd = m.updateDetail(msg)
	case stateSettings:
		cmd = m.updateSettings(msg)
	default:
		m.state = stateList
		cmd = m.updateList(msg)
	}
	return m, cmd
}

func (m *model) View() string {
	var body string
	switch m.state {
	case stateDetail:
		body = m.viewDetail()
	case stateSettings:
		body = m.viewSettings()
	default:
		body = m.viewList()
	}
	if m.confirm != nil {
		body += "\n" + m.viewConfirm()
	}
	return body
}

// Navigation helpers
func (m *model) pushState(next viewState) {
	m.prevStates = append(m.prevStates, m.state)
	m.state = next
}

func (m *model) popState() tea.Cmd {
	if len(m.prevStates) == 0 {
		m.state = stateList
	} else {
		idx := len(m.prevStates) - 1
		m.state = m.prevStates[idx]
		m.prevStates = m.prevStates[:idx]
	}
	if m.state == stateList {
		return m.input.Focus()
	}
	return nil
}

func (m *model) resetMessages() {
	m.errMessage = ""
	m.infoMessage = ""
}

func (m *model) accounts() []customers.Customer {
	return m.coord.Accounts()
}

func (m *model) refilter() {
	value := m.input.Value()
	if _, _, ok := parseListCommand(value); ok && strings.ContainsAny(strings.TrimSpace(value), " \t") {
		value = ""
	}
	m.filtered = filterCustomers(m.accounts(), value)
	if m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) handleLoaded(msg loadedMsg) tea.Cmd {
	if msg.err != nil {
		if isBusy(msg.err) {
			m.infoMessage = "Busy, try again in a moment"
			return nil
		}
		m.errMessage = fmt.Sprintf("load customers: %v", msg.err)
		return nil
	}
	m.loaded = true
	m.refilter()
	if msg.refresh {
		m.infoMessage = fmt.Sprintf("Loaded %d customer(s)", len(m.accounts()))
	}
	return nil
}

func (m *model) handleOutcome(out customers.Outcome) {
	m.refilter()
	name := out.Customer.DisplayName
	if out.Err != nil {
		m.errMessage = fmt.Sprintf("%s %q failed: %v", out.Kind, name, out.Err)
		return
	}
	m.errMessage = ""
	m.infoMessage = fmt.Sprintf("Customer '%s' %s", name, out.Kind)
}

func (m *model) handleDialed(msg dialedMsg) {
	name := msg.customer.DisplayName
	switch {
	case msg.err != nil:
		m.errMessage = fmt.Sprintf("call %s: %v", name, msg.err)
	case !msg.dialed:
		m.infoMessage = ""
	default:
		if sd, ok := m.dialer.(*phone.SystemDialer); ok && sd.Copied {
			m.infoMessage = fmt.Sprintf("Number for %s copied to clipboard", name)
			return
		}
		m.infoMessage = fmt.Sprintf("Calling %s", name)
	}
}

// CONFIRMATION
func (m *model) updateConfirm(key tea.KeyMsg) tea.Cmd {
	var accepted bool
	switch strings.ToLower(key.String()) {
	case "y", "enter":
		accepted = true
	case "n", "esc":
		accepted = false
	default:
		return nil
	}
	c := m.confirm
	m.confirm = nil
	if c.reply != nil {
		c.reply <- accepted
	}
	if !accepted {
		return nil
	}
	var cmds []tea.Cmd
	if c.popOnAccept {
		cmds = append(cmds, m.popState())
	}
	cmds = append(cmds, c.onAccept)
	return batchCmds(cmds)
}

func (m *model) viewConfirm() string {
	p := m.confirm.prompt
	lines := []string{m.theme.Accent.Render(p.Title)}
	if p.Message != "" {
		lines = append(lines, m.theme.Secondary.Render(p.Message))
	}
	lines = append(lines, "", m.theme.HelpKey.Render("y")+" "+m.theme.HelpValue.Render(p.Accept)+"   "+
		m.theme.HelpKey.Render("n")+" "+m.theme.HelpValue.Render(p.Cancel))
	return m.theme.Prompt.Render(strings.Join(lines, "\n")) + "\n"
}

// CUSTOMER LIST
func (m *model) updateList(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
			}
			return nil
		case tea.KeyDown:
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return nil
		case tea.KeyEnter:
			value := m.input.Value()
			m.input.SetValue("")
			cmd := m.runListCommand(value)
			m.refilter()
			return cmd
		case tea.KeyEsc:
			m.input.SetValue("")
			m.refilter()
			return nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	m.refilter()
	return batchCmds(cmds)
}

// runListCommand executes a line typed on the list screen.
func (m *model) runListCommand(value string) tea.Cmd {
	trimmed := strings.TrimSpace(value)
	action, arg, ok := parseListCommand(trimmed)
	if !ok {
		if trimmed == "" {
			if cust, ok := m.highlighted(); ok {
				return m.openDetail(cust)
			}
			return nil
		}
		if cust, ok := resolveCustomer(m.filtered, trimmed); ok {
			return m.openDetail(cust)
		}
		m.errMessage = "Unknown customer or command"
		return nil
	}

	m.resetMessages()
	switch action {
	case listRefresh:
		if m.phase != customers.PhaseIdle {
			m.infoMessage = "Busy, try again in a moment"
			return nil
		}
		return loadCmd(m.coord, true)
	case listNew:
		if m.phase != customers.PhaseIdle {
			m.infoMessage = "Busy, try again in a moment"
			return nil
		}
		return createCmd(m.coord)
	case listImport:
		return m.startImport(arg)
	case listSettings:
		m.settings = newSettingsModel()
		m.input.Blur()
		m.pushState(stateSettings)
		return m.settings.input.Focus()
	case listQuit:
		return tea.Quit
	}

	cust, ok := m.target(arg)
	if !ok {
		m.errMessage = "No matching customer"
		return nil
	}
	switch action {
	case listCall:
		return dialCmd(m.coord, cust)
	case listEdit:
		return m.openDetail(cust)
	case listDelete:
		return m.confirmDelete(cust)
	}
	return nil
}

func (m *model) highlighted() (customers.Customer, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return customers.Customer{}, false
	}
	return m.filtered[m.cursor], true
}

func (m *model) target(arg string) (customers.Customer, bool) {
	if strings.TrimSpace(arg) == "" {
		return m.highlighted()
	}
	return resolveCustomer(m.filtered, arg)
}

func (m *model) confirmDelete(cust customers.Customer) tea.Cmd {
	m.confirm = &confirmation{
		prompt: customers.Prompt{
			Title:  fmt.Sprintf("Delete %s?", cust.DisplayName),
			Accept: "Delete",
			Cancel: "Cancel",
		},
		onAccept: publishDeleteCmd(m.coord, cust),
	}
	return nil
}

// startImport validates path and hands the import to the coordinator, which
// reloads the list once the rows are written.
func (m *model) startImport(path string) tea.Cmd {
	if m.importer == nil {
		m.errMessage = "import: no storage"
		return nil
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		m.errMessage = "Provide a CSV path"
		return nil
	}
	resolved, err := expandPath(trimmed)
	if err != nil {
		m.errMessage = fmt.Sprintf("import path: %v", err)
		return nil
	}
	m.infoMessage = fmt.Sprintf("Importing %s…", filepath.Base(resolved))
	return importCmd(m.coord, m.importer, resolved, m.cfg.Config.Name, m.cfg.Location())
}

func (m *model) handleImported(msg importedMsg) {
	m.refilter()
	m.infoMessage = ""
	res := msg.result
	if res.Created+res.Updated+res.Skipped > 0 {
		parts := []string{fmt.Sprintf("Imported %d customer(s)", res.Created)}
		if res.Updated > 0 {
			parts = append(parts, fmt.Sprintf("updated %d", res.Updated))
		}
		if res.Skipped > 0 {
			parts = append(parts, fmt.Sprintf("skipped %d", res.Skipped))
		}
		m.infoMessage = strings.Join(parts, ", ")
	}
	var errs []string
	if msg.err != nil {
		errs = append(errs, msg.err.Error())
	}
	errs = append(errs, res.Errors...)
	m.errMessage = strings.Join(errs, "; ")
}

func expandPath(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			switch {
			case len(trimmed) == 1:
				trimmed = home
			case trimmed[1] == '/', trimmed[1] == '\\':
				trimmed = filepath.Join(home, trimmed[2:])
			}
		}
	}
	return filepath.Abs(trimmed)
}

func batchCmds(cmds []tea.Cmd) tea.Cmd {
	filtered := cmds[:0]
	for _, c := range cmds {
		if c != nil {
			filtered = append(filtered, c)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return tea.Batch(filtered...)
	}
}

func (m *model) viewList() string {
	lines := []string{m.theme.Title.Render("Customers")}
	status := m.theme.Faint.Render("↑/↓ select • enter edit • n new • r refresh • call/edit/delete <n|name> • import <path> • s settings • q quit")
	lines = append(lines, status)
	if m.phase != customers.PhaseIdle {
		lines = append(lines, m.theme.Busy.Render(capitalize(m.phase.String())+"…"))
	}
	lines = append(lines, "")

	switch {
	case !m.loaded:
		lines = append(lines, m.theme.Faint.Render("Loading customers…"))
	case len(m.filtered) == 0:
		lines = append(lines, m.theme.Warning.Render("No customers found."))
	default:
		for i, c := range m.filtered {
			header := fmt.Sprintf("%d. %s", i+1, c.DisplayName)
			if i == m.cursor {
				lines = append(lines, m.theme.Selected.Render("> "+header))
			} else {
				lines = append(lines, m.theme.Primary.Render("  "+header))
			}
			meta := []string{}
			if c.Company != "" {
				meta = append(meta, c.Company)
			}
			if c.Phone != "" {
				meta = append(meta, fmt.Sprintf("Phone: %s", c.Phone))
			}
			if c.Email != "" {
				meta = append(meta, fmt.Sprintf("Email: %s", c.Email))
			}
			if len(meta) > 0 {
				lines = append(lines, "    "+m.theme.Secondary.Render(strings.Join(meta, "  •  ")))
			}
		}
	}
	lines = append(lines, "")
	if m.infoMessage != "" {
		lines = append(lines, m.theme.Success.Render(m.infoMessage))
	}
	if m.errMessage != "" {
		lines = append(lines, m.theme.Danger.Render(m.errMessage))
	}
	lines = append(lines, m.theme.Border.Render(strings.Repeat("─", 40)))
	lines = append(lines, m.theme.Accent.Render("> ")+m.input.View())
	return strings.Join(lines, "\n") + "\n"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
