package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nyaruka/phonenumbers"
)

type settingsMode int

const (
	settingsViewing settingsMode = iota
	settingsEditingName
	settingsEditingTimezone
	settingsEditingRegion
)

type settingsModel struct {
	mode  settingsMode
	input textinput.Model
	err   string
}

func newSettingsModel() settingsModel {
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 64
	input.Placeholder = "1=Name  2=Timezone  3=Region  4=Back"
	return settingsModel{mode: settingsViewing, input: input}
}

func (m *model) editSetting(mode settingsMode, current string) tea.Cmd {
	m.settings.mode = mode
	m.settings.err = ""
	m.settings.input = textinput.New()
	m.settings.input.Prompt = ""
	m.settings.input.CharLimit = 64
	m.settings.input.SetValue(current)
	return m.settings.input.Focus()
}

func (m *model) leaveSettingsEdit() {
	m.settings.mode = settingsViewing
	m.settings.input = newSettingsModel().input
	m.settings.input.Focus()
}

// SETTINGS
func (m *model) updateSettings(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	if !m.settings.input.Focused() {
		if focus := m.settings.input.Focus(); focus != nil {
			cmds = append(cmds, focus)
		}
	}
	var cmd tea.Cmd
	m.settings.input, cmd = m.settings.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return batchCmds(cmds)
	}
	if key.Type == tea.KeyEsc {
		if m.settings.mode == settingsViewing {
			cmds = append(cmds, m.popState())
		} else {
			m.leaveSettingsEdit()
		}
		return batchCmds(cmds)
	}
	if key.Type != tea.KeyEnter {
		return batchCmds(cmds)
	}

	value := strings.TrimSpace(m.settings.input.Value())
	if m.settings.mode == settingsViewing {
		m.settings.input.SetValue("")
		switch strings.ToLower(value) {
		case "1", "name":
			cmds = append(cmds, m.editSetting(settingsEditingName, m.cfg.Config.Name))
		case "2", "timezone":
			cmds = append(cmds, m.editSetting(settingsEditingTimezone, m.cfg.Config.Timezone))
		case "3", "region":
			cmds = append(cmds, m.editSetting(settingsEditingRegion, m.cfg.Config.Region))
		case "4", "back", "/":
			cmds = append(cmds, m.popState())
		case "":
		default:
			m.settings.err = "Choose 1, 2 or 3 to edit settings"
		}
		return batchCmds(cmds)
	}

	if isBackCommand(value) {
		m.leaveSettingsEdit()
		return batchCmds(cmds)
	}
	if err := m.applySetting(m.settings.mode, value); err != "" {
		m.settings.err = err
		return batchCmds(cmds)
	}
	if saveErr := m.cfg.Save(); saveErr != nil {
		m.settings.err = saveErr.Error()
		return batchCmds(cmds)
	}
	m.leaveSettingsEdit()
	return batchCmds(cmds)
}

// applySetting validates value and stores it in the config. It returns a
// user-facing message on rejection.
func (m *model) applySetting(mode settingsMode, value string) string {
	switch mode {
	case settingsEditingName:
		if value == "" {
			return "Name cannot be empty"
		}
		m.cfg.Config.Name = value
		m.infoMessage = "Name updated"
	case settingsEditingTimezone:
		if value == "" {
			return "Timezone cannot be empty"
		}
		if _, err := time.LoadLocation(value); err != nil {
			return "Invalid timezone"
		}
		m.cfg.Config.Timezone = value
		m.infoMessage = "Timezone updated"
	case settingsEditingRegion:
		region := strings.ToUpper(value)
		if phonenumbers.GetCountryCodeForRegion(region) == 0 {
			return "Unknown region code"
		}
		m.cfg.Config.Region = region
		m.region.Store(region)
		m.infoMessage = "Phone region updated"
	}
	return ""
}

func (m *model) viewSettings() string {
	lines := []string{m.theme.Title.Render("Settings & Help")}
	lines = append(lines, m.theme.Faint.Render("'/' goes back, Esc leaves."))
	lines = append(lines, "")
	lines = append(lines, m.theme.Secondary.Render("Name: "+m.cfg.Config.Name))
	lines = append(lines, m.theme.Secondary.Render("Timezone: "+m.cfg.Config.Timezone))
	lines = append(lines, m.theme.Secondary.Render("Phone region: "+m.cfg.Config.Region))
	lines = append(lines, m.theme.Faint.Render("Config: "+m.cfg.Path()))
	lines = append(lines, "")
	lines = append(lines, m.theme.Subtitle.Render("Shortcuts"))
	lines = append(lines, m.theme.HelpKey.Render("n")+" → "+m.theme.HelpValue.Render("New customer"))
	lines = append(lines, m.theme.HelpKey.Render("r")+" → "+m.theme.HelpValue.Render("Refresh list"))
	lines = append(lines, m.theme.HelpKey.Render("call <n>")+" → "+m.theme.HelpValue.Render("Call a customer"))
	lines = append(lines, m.theme.HelpKey.Render("edit <n>")+" → "+m.theme.HelpValue.Render("Edit a customer"))
	lines = append(lines, m.theme.HelpKey.Render("delete <n>")+" → "+m.theme.HelpValue.Render("Delete a customer"))
	lines = append(lines, m.theme.HelpKey.Render("import <path>")+" → "+m.theme.HelpValue.Render("Import a CSV"))
	lines = append(lines, m.theme.HelpKey.Render("Ctrl+C")+" → "+m.theme.HelpValue.Render("Quit"))
	lines = append(lines, "")

	switch m.settings.mode {
	case settingsViewing:
		lines = append(lines, m.theme.Secondary.Render("1. Update name"))
		lines = append(lines, m.theme.Secondary.Render("2. Update timezone"))
		lines = append(lines, m.theme.Secondary.Render("3. Update phone region"))
		lines = append(lines, m.theme.Faint.Render("4. Back"))
		lines = append(lines, "")
		lines = append(lines, m.theme.Accent.Render("> ")+m.settings.input.View())
	case settingsEditingName:
		lines = append(lines, m.theme.Secondary.Render("Enter new name:"))
		lines = append(lines, m.settings.input.View())
	case settingsEditingTimezone:
		lines = append(lines, m.theme.Secondary.Render("Enter timezone (e.g. America/New_York):"))
		lines = append(lines, m.settings.input.View())
	case settingsEditingRegion:
		lines = append(lines, m.theme.Secondary.Render("Enter phone region (e.g. US, NL, GB):"))
		lines = append(lines, m.settings.input.View())
	}
	if m.settings.err != "" {
		lines = append(lines, "", m.theme.Danger.Render(m.settings.err))
	}
	if m.infoMessage != "" {
		lines = append(lines, "", m.theme.Success.Render(m.infoMessage))
	}
	return strings.Join(lines, "\n") + "\n"
}
