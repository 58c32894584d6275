package stamp

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/quintans/faults"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrDestinationExists is returned before anything is written when the destination is already there.
var ErrDestinationExists = errors.New("destination exists")

// State is a step of a run.
type State int

const (
	StateInit State = iota
	StateValidating
	StateMaterializing
	StateBootstrapping
	StateLaunching
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateValidating:
		return "validating"
	case StateMaterializing:
		return "materializing"
	case StateBootstrapping:
		return "bootstrapping"
	case StateLaunching:
		return "launching"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type Stamp struct {
	templateFS     afero.Fs
	outputFS       afero.Fs
	runner         ProcessRunner
	logger         zerolog.Logger
	exclusions     ExclusionPolicy
	classification ClassificationPolicy
	destParent     string
	git            string
	skipGit        bool
	openCommand    string
	openPath       string
	dryRun         bool
}

type Option func(*Stamp)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Stamp) {
		s.logger = logger
	}
}

func WithRunner(runner ProcessRunner) Option {
	return func(s *Stamp) {
		s.runner = runner
	}
}

func WithExclusions(p ExclusionPolicy) Option {
	return func(s *Stamp) {
		s.exclusions = p
	}
}

func WithClassification(p ClassificationPolicy) Option {
	return func(s *Stamp) {
		s.classification = p
	}
}

// WithDestinationParent places the new project in dir instead of next to the template root.
// Needed when the template is not on the output filesystem, e.g. an embedded one.
func WithDestinationParent(dir string) Option {
	return func(s *Stamp) {
		s.destParent = dir
	}
}

// WithGit sets the git executable used by the bootstrap.
func WithGit(executable string) Option {
	return func(s *Stamp) {
		s.git = executable
	}
}

// WithoutGit materializes the tree and stops there.
func WithoutGit() Option {
	return func(s *Stamp) {
		s.skipGit = true
	}
}

// WithOpen opens path, relative to the destination and with tokens substituted, once the repository exists.
// An empty command picks the platform opener.
func WithOpen(command, path string) Option {
	return func(s *Stamp) {
		s.openCommand = command
		s.openPath = path
	}
}

// WithDryRun logs what would be written and runs no external command.
func WithDryRun(dryRun bool) Option {
	return func(s *Stamp) {
		s.dryRun = dryRun
	}
}

func New(templateFS, outputFS afero.Fs, options ...Option) *Stamp {
	s := &Stamp{
		templateFS:     templateFS,
		outputFS:       outputFS,
		runner:         ExecRunner{},
		logger:         zerolog.Nop(),
		exclusions:     DefaultExclusions(),
		classification: DefaultClassification(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Request holds the parameters of one run.
type Request struct {
	TemplateRoot  string
	Name          string
	Substitutions Substitutions
}

// MaterializedFile is one template file and where it went.
type MaterializedFile struct {
	Source      string
	Destination string
	Binary      bool
}

type Report struct {
	Destination string
	Files       []MaterializedFile
	State       State
}

// Destination returns where a run named name lands for templateRoot.
func (s *Stamp) Destination(templateRoot, name string) string {
	parent := s.destParent
	if parent == "" {
		parent = filepath.Join(templateRoot, "..")
	}
	return filepath.Join(parent, name)
}

// Run materializes the template, bootstraps the repository and opens the configured path.
// The returned report is never nil; its State is StateAborted when err is not nil.
func (s *Stamp) Run(ctx context.Context, req Request) (*Report, error) {
	report := &Report{State: StateInit}
	transition := func(st State) {
		report.State = st
		s.logger.Debug().Stringer("state", st).Str("destination", report.Destination).Msg("state")
	}
	abort := func(err error) (*Report, error) {
		transition(StateAborted)
		return report, faults.Wrap(err)
	}

	transition(StateValidating)
	// the template root may itself sit under a tokenized directory
	report.Destination = req.Substitutions.Apply(s.Destination(req.TemplateRoot, req.Name))
	if err := req.Substitutions.Validate(); err != nil {
		return abort(err)
	}
	exists, err := afero.Exists(s.outputFS, report.Destination)
	if err != nil {
		return abort(err)
	}
	if exists {
		return abort(faults.Errorf("%s: %w", report.Destination, ErrDestinationExists))
	}

	transition(StateMaterializing)
	if !s.dryRun {
		if err := s.outputFS.MkdirAll(report.Destination, 0o755); err != nil {
			return abort(err)
		}
	}
	report.Files, err = s.Walk(req.TemplateRoot, report.Destination, req.Substitutions)
	if err != nil {
		return abort(err)
	}

	if s.dryRun {
		transition(StateDone)
		return report, nil
	}

	if !s.skipGit {
		transition(StateBootstrapping)
		b := Bootstrapper{Runner: s.runner, Git: s.git, Logger: s.logger}
		if err := b.Bootstrap(ctx, report.Destination); err != nil {
			return abort(err)
		}
	}

	if s.openPath != "" {
		transition(StateLaunching)
		if err := s.launch(ctx, report.Destination, req.Substitutions); err != nil {
			return abort(err)
		}
	}

	transition(StateDone)
	return report, nil
}

func (s *Stamp) launch(ctx context.Context, destinationRoot string, subs Substitutions) error {
	command := s.openCommand
	if command == "" {
		command = defaultOpenCommand()
	}
	step := Step{
		Name: "opening project",
		Command: Command{
			Dir:  destinationRoot,
			Name: command,
			Args: []string{subs.Apply(s.openPath)},
		},
	}
	return step.run(ctx, s.runner, s.logger)
}

func defaultOpenCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

// DestinationPath joins destinationRoot and the template relative path and substitutes tokens in the result.
func DestinationPath(templateRelativePath, destinationRoot string, subs Substitutions) string {
	return subs.Apply(filepath.Join(destinationRoot, templateRelativePath))
}

// Walk materializes every file under templateRoot that the exclusion policy lets through.
func (s *Stamp) Walk(templateRoot, destinationRoot string, subs Substitutions) ([]MaterializedFile, error) {
	var files []MaterializedFile
	err := s.processDir(templateRoot, "", destinationRoot, subs, &files)
	if err != nil {
		return files, faults.Wrap(err)
	}
	return files, nil
}

func (s *Stamp) processDir(templateRoot, relDir, destinationRoot string, subs Substitutions, files *[]MaterializedFile) error {
	entries, err := afero.ReadDir(s.templateFS, filepath.Join(templateRoot, relDir))
	if err != nil {
		return faults.Wrap(err)
	}

	for _, entry := range entries {
		rel := filepath.Join(relDir, entry.Name())
		source := filepath.Join(templateRoot, rel)

		if entry.Mode()&os.ModeSymlink != 0 {
			if s.exclusions.SkipDir(entry.Name()) || s.exclusions.SkipFile(entry.Name()) {
				s.logger.Debug().Str("path", rel).Msg("excluded link")
				continue
			}
			target, err := s.templateFS.Stat(source)
			if err != nil {
				return faults.Wrap(err)
			}
			if target.IsDir() {
				s.logger.Debug().Str("path", rel).Msg("skipping directory link")
				continue
			}
		}

		if entry.IsDir() {
			if s.exclusions.SkipDir(entry.Name()) {
				s.logger.Debug().Str("path", rel).Msg("excluded directory")
				continue
			}
			if err := s.processDir(templateRoot, rel, destinationRoot, subs, files); err != nil {
				return err
			}
			continue
		}

		if s.exclusions.SkipFile(entry.Name()) {
			s.logger.Debug().Str("path", rel).Msg("excluded file")
			continue
		}

		s.logger.Info().Msgf("-- %s", rel)
		destination := DestinationPath(rel, destinationRoot, subs)
		binary, err := s.MaterializeFile(source, destination, subs)
		if err != nil {
			return err
		}
		*files = append(*files, MaterializedFile{Source: rel, Destination: destination, Binary: binary})
	}
	return nil
}

// MaterializeFile writes source to destination, creating parent directories.
// Files classified as binary are copied verbatim with their modification time;
// the others are substituted. Both keep the source mode plus owner write.
// It reports whether the file was treated as binary.
func (s *Stamp) MaterializeFile(source, destination string, subs Substitutions) (bool, error) {
	binary := s.classification.IsBinary(destination)

	info, err := s.templateFS.Stat(source)
	if err != nil {
		return binary, faults.Wrap(err)
	}

	if s.dryRun {
		if binary {
			s.logger.Info().Msgf("[COPY] %s (%d bytes)", destination, info.Size())
		} else {
			s.logger.Info().Msgf("[FILE] %s", destination)
		}
		return binary, nil
	}

	if err := s.outputFS.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return binary, faults.Wrap(err)
	}

	if binary {
		return binary, s.copyFile(source, destination, info)
	}

	data, err := afero.ReadFile(s.templateFS, source)
	if err != nil {
		return binary, faults.Wrap(err)
	}
	content := subs.Apply(string(data))
	if err := afero.WriteFile(s.outputFS, destination, []byte(content), writable(info.Mode())); err != nil {
		return binary, faults.Wrap(err)
	}
	return binary, nil
}

func (s *Stamp) copyFile(source, destination string, info os.FileInfo) error {
	in, err := s.templateFS.Open(source)
	if err != nil {
		return faults.Wrap(err)
	}
	defer in.Close()

	out, err := s.outputFS.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, writable(info.Mode()))
	if err != nil {
		return faults.Wrap(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return faults.Wrap(err)
	}
	if err := out.Close(); err != nil {
		return faults.Wrap(err)
	}

	if err := s.outputFS.Chmod(destination, writable(info.Mode())); err != nil {
		return faults.Wrap(err)
	}
	if err := s.outputFS.Chtimes(destination, info.ModTime(), info.ModTime()); err != nil {
		return faults.Wrap(err)
	}
	return nil
}

// writable keeps the source permission bits and adds owner write.
// Embedded templates report 0444 and the new project must be editable.
func writable(mode os.FileMode) os.FileMode {
	return mode.Perm() | 0o200
}
