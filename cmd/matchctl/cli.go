package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alem-hub/mentorship-engine/config"
	"github.com/alem-hub/mentorship-engine/internal/app"
	"github.com/alem-hub/mentorship-engine/internal/application/command"
	"github.com/alem-hub/mentorship-engine/internal/application/query"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/mentorship-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLI
// ══════════════════════════════════════════════════════════════════════════════

// errUsage marks mistakes in the command line itself.
var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}

// cli - состояние одного запуска утилиты.
type cli struct {
	c        *app.Container
	out      io.Writer
	jsonMode bool
}

type commandFunc func(ctx context.Context, cl *cli, args []string) error

type commandEntry struct {
	run     commandFunc
	summary string
}

var commands = map[string]commandEntry{
	"programs": {runPrograms, "list programs open for matching"},
	"initiate": {runInitiate, "run batch matching for a program"},
	"sweep":    {runSweep, "auto-reject overdue pending matches and cascade"},
	"list":     {runList, "list matches of a program, mentee or mentor"},
	"show":     {runShow, "show one match"},
	"stats":    {runStats, "show matching statistics of a program"},
	"preview":  {runPreview, "rank candidate mentors for a mentee without writing"},
	"manual":   {runManual, "create an accepted match as a coordinator"},
	"accept":   {runAccept, "accept a pending match as its mentor"},
	"reject":   {runReject, "reject a pending match as its mentor"},
}

// run разбирает глобальные флаги, собирает контейнер и выполняет команду.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("matchctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "dotenv file to load before the environment")
	seedFile := fs.String("seed", "", "JSON seed for an in-memory dry run instead of the database")
	jsonMode := fs.Bool("json", false, "print JSON instead of tables")
	noColor := fs.Bool("no-color", false, "disable colored output")
	verbose := fs.Bool("v", false, "log at debug level to stderr")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return usageError("%v", err)
	}
	if fs.NArg() == 0 {
		printUsage(stderr, fs)
		return usageError("no command given")
	}

	name := fs.Arg(0)
	entry, ok := commands[name]
	if !ok {
		return usageError("unknown command %q", name)
	}
	setColor(*noColor || *jsonMode)

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := logger.LevelWarn
	if *verbose {
		level = logger.LevelDebug
	}
	opts := app.Options{
		Logger: logger.NewSlog(logger.SlogOptions{
			Output:  stderr,
			Level:   level,
			Format:  "text",
			Service: "matchctl",
		}),
		SyncEvents: true,
	}
	if *seedFile != "" {
		store := memory.NewStore()
		if err := store.LoadSeedFile(*seedFile); err != nil {
			return err
		}
		opts.Store = store
	}

	container, err := app.New(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer container.Close()

	cl := &cli{c: container, out: stdout, jsonMode: *jsonMode}
	return entry.run(ctx, cl, fs.Args()[1:])
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: matchctl [flags] <command> [command flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}

// newFlagSet создаёт набор флагов подкоманды.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError("%s: %v", fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return usageError("%s: unexpected argument %q", fs.Name(), fs.Arg(0))
	}
	return nil
}

func required(fs *flag.FlagSet, names ...string) error {
	for _, name := range names {
		if strings.TrimSpace(fs.Lookup(name).Value.String()) == "" {
			return usageError("%s: -%s is required", fs.Name(), name)
		}
	}
	return nil
}

func (cl *cli) printJSON(v any) error {
	enc := json.NewEncoder(cl.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func runPrograms(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("programs")
	if err := parse(fs, args); err != nil {
		return err
	}

	programs, err := cl.c.Programs.ListPrograms(ctx, cl.c.Clock.Now())
	if err != nil {
		return err
	}
	if cl.jsonMode {
		return cl.printJSON(programs)
	}
	renderPrograms(cl.out, programs, cl.c.Engine.MaxMenteesPerMentor)
	return nil
}

func runInitiate(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("initiate")
	programID := fs.String("program", "", "program ID")
	force := fs.Bool("force", false, "run even outside the matching window")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "program"); err != nil {
		return err
	}

	result, err := cl.c.InitiateMatching.Handle(ctx, command.InitiateMatchingCommand{
		ProgramID:     *programID,
		Force:         *force,
		CorrelationID: "matchctl",
	})
	if err != nil {
		return err
	}
	if cl.jsonMode {
		return cl.printJSON(result)
	}
	renderInitiate(cl.out, result)
	return nil
}

func runSweep(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("sweep")
	if err := parse(fs, args); err != nil {
		return err
	}

	result, err := cl.c.ExpireMatches.Handle(ctx)
	if err != nil {
		return err
	}
	if cl.jsonMode {
		return cl.printJSON(result)
	}
	renderSweep(cl.out, result)
	return nil
}

func runList(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("list")
	programID := fs.String("program", "", "program ID")
	menteeID := fs.String("mentee", "", "only matches of this mentee")
	mentorID := fs.String("mentor", "", "only matches of this mentor")
	statuses := fs.String("status", "", "comma-separated statuses")
	types := fs.String("type", "", "comma-separated match types")
	limit := fs.Int("limit", 50, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := parse(fs, args); err != nil {
		return err
	}

	result, err := cl.c.ListMatches.Handle(ctx, query.ListMatchesQuery{
		ProgramID: *programID,
		MenteeID:  *menteeID,
		MentorID:  *mentorID,
		Statuses:  splitList(*statuses),
		Types:     splitList(*types),
		Limit:     *limit,
		Offset:    *offset,
	})
	if err != nil {
		return err
	}
	if cl.jsonMode {
		return cl.printJSON(result)
	}
	renderMatches(cl.out, result.Matches)
	return nil
}

func runShow(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("show")
	matchID := fs.String("match", "", "match ID")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "match"); err != nil {
		return err
	}

	dto, err := cl.c.GetMatch.Handle(ctx, *matchID)
	if err != nil {
		return err
	}
	if cl.jsonMode {
		return cl.printJSON(dto)
	}
	renderMatchDetail(cl.out, *dto, cl.c.Clock.Now())
	return nil
}

func runStats(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("stats")
	programID := fs.String("program", "", "program ID")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "program"); err != nil {
		return err
	}

	stats, err := cl.c.ProgramStats.Handle(ctx, *programID)
	if err != nil {
		return err
	}
	if cl.jsonMode {
		return cl.printJSON(stats)
	}
	renderStats(cl.out, stats)
	return nil
}

func runPreview(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("preview")
	programID := fs.String("program", "", "program ID")
	menteeID := fs.String("mentee", "", "mentee ID")
	limit := fs.Int("limit", 10, "number of candidates to show (0 = all)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "program", "mentee"); err != nil {
		return err
	}

	result, err := cl.c.PreviewCandidates.Handle(ctx, query.PreviewCandidatesQuery{
		ProgramID: *programID,
		MenteeID:  *menteeID,
		Limit:     *limit,
	})
	if err != nil {
		return err
	}
	if cl.jsonMode {
		return cl.printJSON(result)
	}
	renderPreview(cl.out, result)
	return nil
}

func runManual(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("manual")
	programID := fs.String("program", "", "program ID")
	menteeID := fs.String("mentee", "", "mentee ID")
	mentorID := fs.String("mentor", "", "mentor ID")
	actor := fs.String("actor", "", "coordinator creating the match")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "program", "mentee", "mentor", "actor"); err != nil {
		return err
	}

	m, err := cl.c.ManualMatch.Handle(ctx, command.ManualMatchCommand{
		ProgramID:     *programID,
		MenteeID:      *menteeID,
		MentorID:      *mentorID,
		CoordinatorID: *actor,
	})
	if err != nil {
		return err
	}
	return cl.printMatch(query.NewMatchDTO(m), "Manual match created")
}

func runAccept(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("accept")
	matchID := fs.String("match", "", "match ID")
	actor := fs.String("actor", "", "mentor answering the proposal")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "match", "actor"); err != nil {
		return err
	}

	m, err := cl.c.AcceptMatch.Handle(ctx, command.AcceptMatchCommand{MatchID: *matchID, ActorID: *actor})
	if err != nil {
		return err
	}
	return cl.printMatch(query.NewMatchDTO(m), "Match accepted")
}

func runReject(ctx context.Context, cl *cli, args []string) error {
	fs := newFlagSet("reject")
	matchID := fs.String("match", "", "match ID")
	actor := fs.String("actor", "", "mentor answering the proposal")
	reason := fs.String("reason", "", "optional rejection reason")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "match", "actor"); err != nil {
		return err
	}

	m, err := cl.c.RejectMatch.Handle(ctx, command.RejectMatchCommand{
		MatchID: *matchID,
		ActorID: *actor,
		Reason:  *reason,
	})
	if err != nil {
		return err
	}
	return cl.printMatch(query.NewMatchDTO(m), "Match rejected")
}

func (cl *cli) printMatch(dto query.MatchDTO, title string) error {
	if cl.jsonMode {
		return cl.printJSON(dto)
	}
	success.Fprintln(cl.out, title)
	renderMatchDetail(cl.out, dto, cl.c.Clock.Now())
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
