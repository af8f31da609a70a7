package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

func showBanner(w io.Writer, addr string) {
	colors := []lipgloss.Color{
		lipgloss.Color("#FF6B6B"),
		lipgloss.Color("#FFA86B"),
		lipgloss.Color("#95E1D3"),
		lipgloss.Color("#4ECDC4"),
	}

	lines := []string{
		"█▀█ █▀█ █▀▄ █▀█ █▀▀ █   ▄▀█ █▄█",
		"█▀▀ █▄█ █▄▀ █▀▄ ██▄ █▄▄ █▀█  █ ",
		"",
		"Podcast RSS relay " + Version,
		"http://" + addr,
	}

	var colored []string
	for i, line := range lines {
		if line == "" {
			colored = append(colored, line)
			continue
		}
		style := lipgloss.NewStyle().
			Foreground(colors[i%len(colors)]).
			Bold(i < 2)
		colored = append(colored, style.Render(line))
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("#4ECDC4")).
		Padding(1, 3).
		MarginTop(1).
		MarginBottom(1)

	fmt.Fprintln(w, border.Render(lipgloss.JoinVertical(lipgloss.Center, colored...)))
}
