package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vpnda/akahu-sync/pkg/models"
	"github.com/vpnda/akahu-sync/pkg/utils"
)

// MatchPrompt is what a decision provider is shown for one source account.
type MatchPrompt struct {
	Source   *models.Account
	Provider models.Provider
	// Targets are in seq order.
	Targets []*models.Account
	// Claimed maps target ids already linked to another source account.
	Claimed    map[string]string
	Suggestion Suggestion
	// Attempt starts at 1.
	Attempt int
	// Rejection explains why the previous reply was refused.
	Rejection string
}

// DecisionProvider answers matching prompts with a raw reply, parsed by ParseSelection.
type DecisionProvider interface {
	Decide(ctx context.Context, prompt MatchPrompt) (string, error)
}

// Confirmer answers yes/no questions guarding destructive changes.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// ConsoleDecider prompts on a line-based console.
type ConsoleDecider struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsoleDecider(in io.Reader, out io.Writer) *ConsoleDecider {
	return &ConsoleDecider{in: bufio.NewReader(in), out: out}
}

func (c *ConsoleDecider) Decide(ctx context.Context, prompt MatchPrompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt.Rejection != "" {
		fmt.Fprintf(c.out, "%s\n", prompt.Rejection)
	} else {
		c.renderMenu(prompt)
	}
	fmt.Fprintf(c.out, "Enter the number of the %s account for %q: ", prompt.Provider, prompt.Source.Name)
	return c.readLine(ctx)
}

func (c *ConsoleDecider) renderMenu(prompt MatchPrompt) {
	src := prompt.Source
	fmt.Fprintf(c.out, "\nAkahu account: %s", src.Name)
	if src.Connection != "" {
		fmt.Fprintf(c.out, " (%s)", src.Connection)
	}
	fmt.Fprintln(c.out)

	switch {
	case prompt.Suggestion.Seq > 0:
		if t := targetBySeq(prompt.Targets, prompt.Suggestion.Seq); t != nil {
			fmt.Fprintf(c.out, "Suggested match (%s): %d. %s\n", prompt.Suggestion.Strategy, t.Seq, t.Name)
		}
	default:
		fmt.Fprintf(c.out, "Suggested match (%s): none\n", prompt.Suggestion.Strategy)
	}

	fmt.Fprintf(c.out, "%s accounts:\n", utils.Capitalize(prompt.Provider.String()))
	fmt.Fprintln(c.out, "\t(Press Enter to skip for now)")
	fmt.Fprintln(c.out, "\t 0. Mark this account as DO NOT MAP (will not ask again)")
	for _, t := range prompt.Targets {
		line := fmt.Sprintf("\t%2d. %s", t.Seq, t.Name)
		if _, claimed := prompt.Claimed[t.ID]; claimed {
			line += " (Already Mapped)"
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *ConsoleDecider) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(c.out, "%s Type 'Y' to confirm: ", question)
	answer, err := c.readLine(ctx)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y"), nil
}

func (c *ConsoleDecider) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// AutoDecider runs unattended: it accepts any concrete suggestion, skips otherwise,
// and never confirms deletions.
type AutoDecider struct{}

func (AutoDecider) Decide(_ context.Context, prompt MatchPrompt) (string, error) {
	if prompt.Attempt > 1 || prompt.Suggestion.Seq <= 0 {
		return "", nil
	}
	return strconv.Itoa(prompt.Suggestion.Seq), nil
}

func (AutoDecider) Confirm(context.Context, string) (bool, error) {
	return false, nil
}

func targetBySeq(targets []*models.Account, seq int) *models.Account {
	for _, t := range targets {
		if t.Seq == seq {
			return t
		}
	}
	return nil
}

var (
	_ DecisionProvider = (*ConsoleDecider)(nil)
	_ Confirmer        = (*ConsoleDecider)(nil)
	_ DecisionProvider = AutoDecider{}
	_ Confirmer        = AutoDecider{}
)
