package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/quintans/faults"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/quintans/stamp"
	"github.com/quintans/stamp/internal/config"
	"github.com/quintans/stamp/internal/logging"
)

var (
	info = color.New(color.FgGreen).FprintfFunc()
	fail = color.New(color.FgRed).FprintfFunc()
)

type rootOptions struct {
	templateDir string
	configFile  string
	valuesFile  string
	openPath    string
	dryRun      bool
	noGit       bool
	verbosity   int
}

func newRootCmd(fs afero.Fs, runner stamp.ProcessRunner, stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "stamp NAME [SUBTYPE]",
		Short: "Create a new project from a template directory",
		Long: `stamp copies the template directory into a sibling directory called NAME,
replacing the name token (and the subtype token when SUBTYPE is given) in file
names and file contents, then turns the result into a git repository with a
single commit.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd, fs, runner, opts, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&opts.templateDir, "template", "t", ".", "Template directory")
	flags.StringVarP(&opts.configFile, "config", "c", "", "Config file (yaml or toml)")
	flags.StringVar(&opts.valuesFile, "values", "", "YAML file with extra placeholder: value pairs")
	flags.StringVar(&opts.openPath, "open", "", "Path inside the new project to open when done")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Print actions without writing files")
	flags.BoolVar(&opts.noGit, "no-git", false, "Do not create a git repository")
	flags.CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v, -vv)")

	return cmd
}

func run(cmd *cobra.Command, fs afero.Fs, runner stamp.ProcessRunner, opts *rootOptions, args []string, stdout, stderr io.Writer) error {
	logging.Setup(opts.verbosity, stderr, color.NoColor)
	logger := logging.GetLogger("stamp")

	params := stamp.Params{Name: args[0]}
	if len(args) > 1 {
		params.Subtype = args[1]
	}

	cfg, err := config.Load(config.Sources{
		UserFile:     config.UserConfigFile(),
		TemplateFS:   fs,
		TemplateRoot: opts.templateDir,
		File:         opts.configFile,
	})
	if err != nil {
		return faults.Wrap(err)
	}

	var extra stamp.Substitutions
	if opts.valuesFile != "" {
		extra, err = stamp.LoadSubstitutions(fs, opts.valuesFile)
		if err != nil {
			return faults.Wrap(err)
		}
	}

	subs, err := cfg.Substitutions(params, extra)
	if err != nil {
		return faults.Wrap(err)
	}

	openPath := cfg.Open.Path
	if opts.openPath != "" {
		openPath = opts.openPath
	}

	options := []stamp.Option{
		stamp.WithLogger(logger),
		stamp.WithRunner(runner),
		stamp.WithExclusions(cfg.Exclusions()),
		stamp.WithClassification(cfg.Classification()),
		stamp.WithGit(cfg.Git.Command),
		stamp.WithOpen(cfg.Open.Command, openPath),
		stamp.WithDryRun(opts.dryRun),
	}
	if opts.noGit || !cfg.Git.Enabled {
		options = append(options, stamp.WithoutGit())
	}

	s := stamp.New(fs, fs, options...)
	report, err := s.Run(cmd.Context(), stamp.Request{
		TemplateRoot:  opts.templateDir,
		Name:          params.Name,
		Substitutions: subs,
	})
	if err != nil {
		return faults.Wrap(err)
	}

	if opts.dryRun {
		fmt.Fprintf(stdout, "Dry-run complete. No files written.\n")
		return nil
	}
	info(stdout, "Created %s (%d files)\n", report.Destination, len(report.Files))
	return nil
}

// printError reports err the way the user needs to see it: the clashing destination,
// or the output captured from the external command that failed.
func printError(w io.Writer, err error) {
	var cmdErr *stamp.CommandError
	switch {
	case errors.Is(err, stamp.ErrDestinationExists):
		fail(w, "** destination exists: %v\n", err)
	case errors.As(err, &cmdErr):
		fail(w, "** %s failed: %s (exit status %d)\n", cmdErr.Step, cmdErr.Command.String(), cmdErr.Result.ExitCode)
		if len(cmdErr.Result.Stdout) > 0 {
			fmt.Fprintf(w, "%s\n", cmdErr.Result.Stdout)
		}
		if len(cmdErr.Result.Stderr) > 0 {
			fmt.Fprintf(w, "%s\n", cmdErr.Result.Stderr)
		}
	default:
		fail(w, "** %+v\n", err)
	}
}
