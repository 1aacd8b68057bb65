package sync

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	dialogTitleStyle = lipgloss.NewStyle().Bold(true)
)

// RenderDialog frames a title and body in a bordered box.
func RenderDialog(title, body string) string {
	content := strings.TrimRight(body, "\n")
	if title != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, dialogTitleStyle.Render(title), "", content)
	}
	return dialogStyle.Render(content)
}

// ConsolePrompter asks on the terminal whether to go ahead with the valid rows of a partially
// invalid batch. Without a terminal it declines unless AssumeYes is set.
type ConsolePrompter struct {
	In        io.Reader
	Out       io.Writer
	AssumeYes bool
	// Interactive overrides the terminal check, mainly for tests.
	Interactive func() bool
}

func NewConsolePrompter(assumeYes bool) *ConsolePrompter {
	return &ConsolePrompter{In: os.Stdin, Out: os.Stderr, AssumeYes: assumeYes}
}

func (p *ConsolePrompter) interactive() bool {
	if p.Interactive != nil {
		return p.Interactive()
	}
	f, ok := p.In.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *ConsolePrompter) ConfirmPartial(report ValidationReport) bool {
	fmt.Fprintln(p.Out, RenderDialog("Validation: "+report.Tab, report.Summary()))
	if p.AssumeYes {
		return true
	}
	if !p.interactive() {
		fmt.Fprintln(p.Out, "Not a terminal, cancelling (use --yes to continue with the valid rows).")
		return false
	}
	fmt.Fprint(p.Out, "[y/N] ")
	answer, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
