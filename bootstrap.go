package stamp

import (
	"context"

	"github.com/rs/zerolog"
)

// CommitMessage is the message of the single commit created in a new project.
const CommitMessage = "Yeah! Initial commit"

// Bootstrapper turns a materialized tree into a git repository with one commit.
type Bootstrapper struct {
	Runner ProcessRunner
	// Git is the git executable, "git" when empty.
	Git    string
	Logger zerolog.Logger
}

// Steps returns the commands Bootstrap runs, in order.
func (b Bootstrapper) Steps(destinationRoot string) []Step {
	git := b.Git
	if git == "" {
		git = "git"
	}
	return []Step{
		{Name: "creating repo", Command: Command{Dir: destinationRoot, Name: git, Args: []string{"init"}}},
		{Name: "staging files", Command: Command{Dir: destinationRoot, Name: git, Args: []string{"add", "-A"}}},
		{Name: "committing to repo", Command: Command{Dir: destinationRoot, Name: git, Args: []string{"commit", "-m", CommitMessage}}},
	}
}

// Bootstrap stops at the first failing step. Nothing already done is rolled back.
func (b Bootstrapper) Bootstrap(ctx context.Context, destinationRoot string) error {
	for _, s := range b.Steps(destinationRoot) {
		if err := s.run(ctx, b.Runner, b.Logger); err != nil {
			return err
		}
	}
	return nil
}

// Step is a named external command.
type Step struct {
	Name    string
	Command Command
}

func (s Step) run(ctx context.Context, runner ProcessRunner, logger zerolog.Logger) error {
	logger.Info().Str("dir", s.Command.Dir).Str("command", s.Command.String()).Msgf("-- %s", s.Name)
	return runStep(ctx, runner, s.Name, s.Command)
}
