// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ollama-relay/internal/model"
	"github.com/jeranaias/ollama-relay/internal/ui/styles"
	"github.com/jeranaias/ollama-relay/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	switch m.status {
	case StatusChecking:
		return m.renderChecking()
	case StatusError:
		return m.renderGuidance()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("Ollama Chat")

	var status string
	switch m.status {
	case StatusConnected:
		status = m.theme.StatusConnected.Render(styles.StatusIndicators.Success + " " + m.status.String())
	case StatusError:
		status = m.theme.StatusError.Render(styles.StatusIndicators.Error + " " + m.status.String())
	default:
		status = m.theme.StatusChecking.Render(styles.StatusIndicators.Pending + " " + m.status.String())
	}

	parts := []string{title, status}
	if m.modelName != "" {
		parts = append(parts, m.theme.HeaderModel.Render(m.modelName))
	}

	width := m.width - 2
	if width < 1 {
		width = 1
	}
	return m.theme.Header.Width(width).Render(strings.Join(parts, "  "))
}

func (m Model) renderFooter() string {
	var line string
	if m.streaming {
		line = m.theme.Spinner.Render(m.spinner.View() + " Thinking...")
	} else {
		line = m.input.View()
	}

	width := m.width - 2
	if width < 1 {
		width = 1
	}
	input := m.theme.InputContainer.Width(width).Render(line)

	bindings := m.keys.ShortHelp()
	if m.streaming {
		bindings = m.keys.StreamingHelp()
	}
	return input + "\n" + m.theme.Help.Render(helpLine(bindings))
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " | ")
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m Model) renderMessages() string {
	msgs := m.session.Messages()
	if len(msgs) == 0 {
		return m.theme.Help.Render("No messages yet. Type below and press Enter.")
	}

	blocks := make([]string, 0, len(msgs))
	for i, msg := range msgs {
		last := i == len(msgs)-1
		blocks = append(blocks, m.renderMessage(msg, last))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg model.Message, last bool) string {
	stamp := m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	width := m.theme.ContentWidth()

	switch msg.Role {
	case model.RoleUser:
		head := m.theme.RoleUser.Render(msg.Role.DisplayName()) + " " + stamp
		return head + "\n" + m.theme.UserBody.Render(util.WrapWidth(msg.Content, width))

	case model.RoleAssistant:
		head := m.theme.RoleAssistant.Render(msg.Role.DisplayName()) + " " + stamp
		if msg.IsEmpty() && last && m.streaming {
			return head + "\n" + m.theme.AssistantBody.Render(m.spinner.View()+" Thinking...")
		}
		return head + "\n" + m.theme.AssistantBody.Render(m.renderer.Render(msg.Content))

	default:
		head := m.theme.RoleSystem.Render(msg.Role.DisplayName()) + " " + stamp
		return head + "\n" + m.theme.SystemBody.Render(util.WrapWidth(msg.Content, width))
	}
}

// =============================================================================
// CONNECTION SCREENS
// =============================================================================

func (m Model) renderChecking() string {
	text := m.spinner.View() + " Connecting to server..."
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.theme.StatusChecking.Render(text))
}

// renderGuidance lists what has to be running for the chat to work.
func (m Model) renderGuidance() string {
	var b strings.Builder
	b.WriteString(m.theme.GuidanceTitle.Render("Could not connect to the relay server."))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Tried %s\n\n", m.session.Client().BaseURL())
	b.WriteString("Please make sure:\n")
	fmt.Fprintf(&b, "  • The relay server is running on port 3001 (%s)\n", m.theme.GuidanceCode.Render("ollama-relay serve"))
	fmt.Fprintf(&b, "  • Ollama is running (%s)\n", m.theme.GuidanceCode.Render("ollama serve"))
	b.WriteString("  • The llama3.2 model is loaded\n")
	if m.statusErr != nil {
		b.WriteString("\n")
		b.WriteString(m.theme.Help.Render(util.TruncateWidth(m.statusErr.Error(), m.theme.ContentWidth())))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Help.Render(helpLine([]key.Binding{m.keys.Retry, m.keys.Quit})))

	box := m.theme.Guidance.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
