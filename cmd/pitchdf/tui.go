package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type doneMsg struct{}

type tickMsg time.Time

type model struct {
	startTime time.Time
	source    string

	games   int
	written int
	skipped int
	failed  int
	pitches int
	recent  []string
	done    bool
}

func initialModel(source string) model {
	return model{startTime: time.Now(), source: source}
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickCmd()
	case gameUpdate:
		m.games++
		var line string
		switch {
		case msg.Err != nil:
			m.failed++
			line = fmt.Sprintf("FAIL %s: %v", labelOf(msg), msg.Err)
		case msg.Skipped:
			m.skipped++
			line = fmt.Sprintf("skip %s", labelOf(msg))
		default:
			m.written++
			m.pitches += msg.Pitches
			line = fmt.Sprintf("ok   %s: %d pitches", labelOf(msg), msg.Pitches)
		}
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > 10 {
			m.recent = m.recent[:10]
		}
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func labelOf(u gameUpdate) string {
	if u.GameID != "" {
		return u.GameID
	}
	return u.Label
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := 0.0
	if duration.Seconds() >= 1 {
		gamesPerSec = float64(m.games) / duration.Seconds()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Source:   %s\n", m.source)
	fmt.Fprintf(&b, "Games:    %d (written %d, skipped %d, failed %d)\n", m.games, m.written, m.skipped, m.failed)
	fmt.Fprintf(&b, "Pitches:  %d\n", m.pitches)
	fmt.Fprintf(&b, "Duration: %s\n", duration.Round(time.Second))
	fmt.Fprintf(&b, "Games/s:  %.2f\n\n", gamesPerSec)

	b.WriteString("Recent games:\n")
	for _, line := range m.recent {
		b.WriteString(line + "\n")
	}
	if m.done {
		b.WriteString("\nDone.\n")
	} else {
		b.WriteString("\nPress q to stop (buffered games are flushed).\n")
	}
	return b.String()
}
