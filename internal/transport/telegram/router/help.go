package router

import (
	"strings"

	"jobtracker/pkg/tgui"
)

// helpText lists the commands the caller may use, in registration order.
func (m *CommandManager) helpText(owner bool) string {
	m.mu.RLock()
	cmds := m.ordered
	m.mu.RUnlock()

	lines := []string{tgui.B("Available commands").String()}
	var admin []string
	for _, c := range cmds {
		if c.Hidden {
			continue
		}
		line := "/" + tgui.Esc(c.Name).String()
		if c.Usage != "" && c.Usage != "/"+c.Name {
			line = tgui.Code(c.Usage).String()
		}
		if c.Description != "" {
			line += " - " + tgui.Esc(c.Description).String()
		}
		switch {
		case c.Access == AccessEveryone:
			lines = append(lines, line)
		case owner:
			admin = append(admin, line)
		}
	}
	if len(admin) > 0 {
		lines = append(lines, "", tgui.B("Owner only").String())
		lines = append(lines, admin...)
	}
	return strings.Join(lines, "\n")
}
