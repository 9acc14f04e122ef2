package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/risk"
)

// Asker is the interactive input the CLI needs. Interrupt and EOF are
// reported as errors.
type Asker interface {
	Input(message, def string) (string, error)
	Select(message string, options []string, def string) (string, error)
}

type surveyAsker struct{}

func (surveyAsker) Input(message, def string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &answer)
	return answer, err
}

func (surveyAsker) Select(message string, options []string, def string) (string, error) {
	var answer string
	prompt := &survey.Select{Message: message, Options: options}
	if def != "" {
		prompt.Default = def
	}
	err := survey.AskOne(prompt, &answer)
	return answer, err
}

// isInterrupt reports whether err means the user wants out.
func isInterrupt(err error) bool {
	return errors.Is(err, terminal.InterruptErr) || errors.Is(err, io.EOF)
}

// PromptForRisk asks for a risk level, defaulting to current.
func PromptForRisk(a Asker, current risk.Level) (risk.Level, error) {
	options := make([]string, 0, 3)
	for _, l := range risk.Levels() {
		options = append(options, l.DisplayName())
	}
	choice, err := a.Select("What's your risk appetite?", options, current.DisplayName())
	if err != nil {
		return current, err
	}
	for _, l := range risk.Levels() {
		if l.DisplayName() == choice {
			return l, nil
		}
	}
	return current, fmt.Errorf("unknown risk choice %q", choice)
}

// Onboard asks for the user's name and risk appetite and saves the profile.
func Onboard(a Asker, mgr *config.Manager, p *config.Profile, out io.Writer) error {
	fmt.Fprintln(out, headerStyle.Render(strings.Repeat("=", 50)))
	fmt.Fprintln(out, headerStyle.Render("Welcome to Clarence! Let's get you set up."))
	fmt.Fprintln(out, headerStyle.Render(strings.Repeat("=", 50)))

	var name string
	for strings.TrimSpace(name) == "" {
		var err error
		name, err = a.Input("What's your name?", "")
		if err != nil {
			return err
		}
	}
	p.Name = strings.TrimSpace(name)
	fmt.Fprintf(out, "\nGood to meet you, %s!\n\n", p.Name)

	level, err := PromptForRisk(a, risk.Medium)
	if err != nil {
		return err
	}
	p.RiskAppetite = level.String()

	if err := mgr.Save(p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	fmt.Fprintf(out, "\nProfile created! Risk level: %s\n", p.RiskAppetite)
	fmt.Fprintln(out, "Type /scan to find opportunities or ask any trading question.")
	return nil
}
