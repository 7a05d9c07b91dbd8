package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"customerterm/internal/customers"
)

type detailForm struct {
	index    int
	fields   []formField
	input    textinput.Model
	err      string
	original customers.Customer
}

type formField struct {
	label    string
	value    string
	required bool
}

func newDetailForm(existing customers.Customer) detailForm {
	ti := textinput.New()
	ti.Placeholder = "Display name"
	ti.CharLimit = 96
	ti.Focus()
	form := detailForm{
		fields: []formField{
			{label: "Display name", value: existing.DisplayName, required: true},
			{label: "Phone", value: existing.Phone},
			{label: "Email", value: existing.Email},
			{label: "Company", value: existing.Company},
			{label: "Address", value: existing.Address},
		},
		input:    ti,
		original: existing,
	}
	form.input.SetValue(existing.DisplayName)
	return form
}

func (f detailForm) editing() bool {
	return !f.original.IsNew()
}

// customer merges the form values over the customer being edited.
func (f detailForm) customer() customers.Customer {
	c := f.original
	c.DisplayName = strings.TrimSpace(f.fields[0].value)
	c.Phone = strings.TrimSpace(f.fields[1].value)
	c.Email = strings.TrimSpace(f.fields[2].value)
	c.Company = strings.TrimSpace(f.fields[3].value)
	c.Address = strings.TrimSpace(f.fields[4].value)
	return c
}

func (f *detailForm) moveTo(index int) {
	f.index = index
	field := f.fields[index]
	f.input.Placeholder = field.label
	f.input.SetValue(field.value)
	f.err = ""
}

func (m *model) openDetail(c customers.Customer) tea.Cmd {
	m.resetMessages()
	m.detail = newDetailForm(c)
	m.input.Blur()
	m.pushState(stateDetail)
	return m.detail.input.Focus()
}

func isDeleteCommand(value string) bool {
	return strings.TrimSpace(strings.ToLower(value)) == "delete."
}

func isBackCommand(value string) bool {
	v := strings.TrimSpace(strings.ToLower(value))
	return v == "/" || v == "back"
}

// DETAIL FORM
func (m *model) updateDetail(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.detail.input, cmd = m.detail.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return batchCmds(cmds)
	}
	switch key.Type {
	case tea.KeyEsc:
		cmds = append(cmds, m.popState())
	case tea.KeyEnter:
		cmds = append(cmds, m.submitDetailField(m.detail.input.Value()))
	}
	return batchCmds(cmds)
}

func (m *model) submitDetailField(raw string) tea.Cmd {
	value := strings.TrimSpace(raw)
	form := &m.detail
	switch {
	case isDeleteCommand(value):
		if !form.editing() {
			form.err = "Nothing to delete yet"
			return nil
		}
		cust := form.original
		form.input.SetValue("")
		m.confirmDelete(cust)
		m.confirm.popOnAccept = true
		return nil
	case isBackCommand(value):
		if form.index == 0 {
			return m.popState()
		}
		form.moveTo(form.index - 1)
		return nil
	}

	if form.fields[form.index].required && value == "" {
		form.err = "This field is required"
		return nil
	}
	form.fields[form.index].value = value
	if form.index < len(form.fields)-1 {
		form.moveTo(form.index + 1)
		return nil
	}

	cust := form.customer()
	if cust.IsNew() {
		cust.Creator = m.cfg.Config.Name
	}
	m.detail = newDetailForm(customers.Customer{})
	m.infoMessage = fmt.Sprintf("Saving '%s'…", cust.DisplayName)
	return tea.Batch(publishSaveCmd(m.coord, cust), m.popState())
}

func (m *model) viewDetail() string {
	form := m.detail
	field := form.fields[form.index]
	title := "New Customer"
	hint := "Enter details. '/' goes back a field, Esc cancels."
	if form.editing() {
		title = "Edit Customer"
		hint = "Enter details. '/' goes back a field, 'delete.' removes the customer, Esc cancels."
	}
	lines := []string{
		m.theme.Title.Render(title),
		m.theme.Faint.Render(hint),
		"",
		m.theme.Secondary.Render(fmt.Sprintf("%d/%d", form.index+1, len(form.fields))),
		m.theme.Primary.Render(field.label + ":"),
		form.input.View(),
	}
	if form.err != "" {
		lines = append(lines, "", m.theme.Danger.Render(form.err))
	}
	return strings.Join(lines, "\n") + "\n"
}
