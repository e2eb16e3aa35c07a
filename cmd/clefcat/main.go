// clefcat reads CLEF (compact log event format) files and prints the events
// as text or normalized JSON, optionally storing them in a database.
//
// Usage:
//
//	clefcat app.clef
//	zstdcat app.clef.zst | clefcat -o json | jq 'select(.level == "Error")'
//	clefcat --follow --sink postgres --dsn postgres://localhost/logs app.clef
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/juliosaraiva/clefreader/internal/config"
	"github.com/juliosaraiva/clefreader/internal/emitter"
	"github.com/juliosaraiva/clefreader/internal/follow"
	"github.com/juliosaraiva/clefreader/internal/ingest"
	"github.com/juliosaraiva/clefreader/internal/parser"
	"github.com/juliosaraiva/clefreader/internal/reader"
	"github.com/juliosaraiva/clefreader/internal/sink"
	"github.com/juliosaraiva/clefreader/internal/sink/clickhouse"
	"github.com/juliosaraiva/clefreader/internal/sink/postgres"
	"github.com/juliosaraiva/clefreader/internal/source"
)

// Version information (set via build flags)
var version = "dev"

// Flags holds the parsed command line.
type Flags struct {
	ConfigPath string

	// Output options
	Output        string
	Pretty        bool
	Fields        []string
	AddTimestamp  bool
	AddLineNumber bool

	// Input options
	Follow        bool
	Strict        bool
	DecimalFloats bool

	// Storage options
	Sink string
	DSN  string

	// General options
	Quiet   bool // Suppress warnings
	Verbose bool // Debug output
	Help    bool // Show help
	Version bool // Show version

	Files []string

	// set records which flags were given explicitly.
	set map[string]bool
}

// Options are the resolved settings for one run.
type Options struct {
	config.Config

	Follow  bool
	Quiet   bool
	Verbose bool
}

// input is one named stream to read events from.
type input struct {
	name string
	r    io.Reader
}

func main() {
	fl := parseFlags()

	// Handle info flags
	if fl.Version {
		fmt.Printf("clefcat version %s\n", version)
		os.Exit(0)
	}

	if fl.Help {
		printUsage()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, fl)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line arguments into Flags.
func parseFlags() Flags {
	var fl Flags
	var fieldsStr string

	flag.StringVar(&fl.ConfigPath, "config", "", "YAML config file")
	flag.StringVar(&fl.ConfigPath, "c", "", "YAML config file (shorthand)")

	// Output options
	flag.StringVar(&fl.Output, "output", emitter.FormatText, "Output format: json or text")
	flag.StringVar(&fl.Output, "o", emitter.FormatText, "Output format (shorthand)")
	flag.BoolVar(&fl.Pretty, "pretty", false, "Pretty-print JSON output")
	flag.StringVar(&fieldsStr, "fields", "", "Only output these properties (comma-separated)")
	flag.StringVar(&fieldsStr, "F", "", "Only output these properties (shorthand)")
	flag.BoolVar(&fl.AddTimestamp, "add-timestamp", false, "Add _ingestTime field")
	flag.BoolVar(&fl.AddLineNumber, "add-line-number", false, "Add _lineNumber field")

	// Input options
	flag.BoolVar(&fl.Follow, "follow", false, "Keep reading FILE as it grows")
	flag.BoolVar(&fl.Strict, "strict", false, "Stop at the first malformed line")
	flag.BoolVar(&fl.DecimalFloats, "decimal", false, "Keep fractional numbers exact")

	// Storage options
	flag.StringVar(&fl.Sink, "sink", sink.KindNone, "Store events: none, postgres or clickhouse")
	flag.StringVar(&fl.DSN, "dsn", "", "Database connection string for --sink")

	// General options
	flag.BoolVar(&fl.Quiet, "quiet", false, "Suppress warnings to stderr")
	flag.BoolVar(&fl.Quiet, "q", false, "Suppress warnings (shorthand)")
	flag.BoolVar(&fl.Verbose, "verbose", false, "Debug output to stderr")
	flag.BoolVar(&fl.Verbose, "v", false, "Debug output (shorthand)")
	flag.BoolVar(&fl.Help, "help", false, "Show help")
	flag.BoolVar(&fl.Help, "h", false, "Show help (shorthand)")
	flag.BoolVar(&fl.Version, "version", false, "Show version")
	flag.BoolVar(&fl.Version, "V", false, "Show version (shorthand)")

	// Custom usage message
	flag.Usage = printUsage

	flag.Parse()

	fl.Fields = splitFields(fieldsStr)
	fl.Files = flag.Args()
	fl.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		fl.set[f.Name] = true
	})

	return fl
}

func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.Split(s, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// printUsage prints the help message.
func printUsage() {
	fmt.Fprintf(os.Stderr, `clefcat - Read CLEF log files

USAGE:
    clefcat [OPTIONS] [FILE...]
    <command> | clefcat [OPTIONS]

    FILE may be plain, gzip or zstd compressed. "-" or no FILE reads stdin.

OPTIONS:
    -c, --config <PATH>       YAML config file
    -o, --output <FORMAT>     Output format: text (default) or json
    --pretty                  Pretty-print JSON (not recommended for pipes)
    -F, --fields <NAMES>      Only output these properties (comma-separated)
    --add-timestamp           Add _ingestTime field with ingestion time
    --add-line-number         Add _lineNumber field

    --follow                  Keep reading FILE as it grows (one file only)
    --strict                  Stop at the first malformed line
    --decimal                 Keep fractional numbers exact

    --sink <KIND>             Also store events: none, postgres, clickhouse
    --dsn <DSN>               Database connection string

    -q, --quiet               Suppress warnings to stderr
    -v, --verbose             Debug output to stderr
    -h, --help                Show this help
    -V, --version             Show version

ENVIRONMENT:
    CLEF_OUTPUT, CLEF_SINK, CLEF_DSN, CLEF_BATCH_SIZE, CLEF_BATCH_WAIT_MS,
    CLEF_QUEUE_SIZE override the config file; flags override both.

EXAMPLES:
    # Read a compressed log
    clefcat app-20240115.clef.gz

    # Errors only, with jq
    clefcat -o json app.clef | jq 'select(.level == "Error")'

    # Tail a live log into PostgreSQL
    clefcat --follow --sink postgres --dsn postgres://localhost/logs app.clef

`)
}

// resolveOptions merges the config file, environment and explicit flags.
func resolveOptions(fl Flags) (Options, error) {
	cfg, err := config.Load(fl.ConfigPath, func(c *config.Config) {
		if fl.set["output"] || fl.set["o"] {
			c.Output = fl.Output
		}
		if fl.set["pretty"] {
			c.Pretty = fl.Pretty
		}
		if fl.set["fields"] || fl.set["F"] {
			c.Fields = fl.Fields
		}
		if fl.set["add-timestamp"] {
			c.AddTimestamp = fl.AddTimestamp
		}
		if fl.set["add-line-number"] {
			c.AddLineNumber = fl.AddLineNumber
		}
		if fl.set["strict"] {
			c.Strict = fl.Strict
		}
		if fl.set["decimal"] {
			c.DecimalFloats = fl.DecimalFloats
		}
		if fl.set["sink"] {
			c.Sink.Kind = fl.Sink
		}
		if fl.set["dsn"] {
			c.Sink.DSN = fl.DSN
		}
	})
	if err != nil {
		return Options{}, err
	}

	return Options{
		Config:  cfg,
		Follow:  fl.Follow,
		Quiet:   fl.Quiet,
		Verbose: fl.Verbose,
	}, nil
}

// run executes the pipeline using the files named on the command line.
func run(ctx context.Context, fl Flags) error {
	opts, err := resolveOptions(fl)
	if err != nil {
		return err
	}
	if opts.Quiet {
		log.SetOutput(io.Discard)
	}

	inputs, closeInputs, err := openInputs(ctx, fl.Files, opts.Follow)
	if err != nil {
		return err
	}
	defer closeInputs()

	store, err := openSink(ctx, opts.Sink)
	if err != nil {
		return fmt.Errorf("open %s sink: %w", opts.Sink.Kind, err)
	}
	if store != nil {
		defer store.Close()
	}

	return runPipeline(ctx, opts, inputs, os.Stdout, os.Stderr, store)
}

func openInputs(ctx context.Context, files []string, followFile bool) ([]input, func(), error) {
	if len(files) == 0 {
		files = []string{source.Stdin}
	}

	if followFile {
		if len(files) != 1 || files[0] == source.Stdin {
			return nil, nil, errors.New("--follow needs exactly one FILE")
		}
		fr, err := follow.Open(ctx, files[0])
		if err != nil {
			return nil, nil, err
		}
		return []input{{name: files[0], r: fr}}, func() { fr.Close() }, nil
	}

	var inputs []input
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	for _, name := range files {
		rc, err := source.Open(name)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, rc)
		inputs = append(inputs, input{name: name, r: rc})
	}
	return inputs, closeAll, nil
}

func openSink(ctx context.Context, sc config.SinkConfig) (sink.Sink, error) {
	switch sc.Kind {
	case sink.KindPostgres:
		s, err := postgres.Connect(ctx, sc.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case sink.KindClickHouse:
		s, err := clickhouse.Connect(ctx, sc.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}

// runPipeline reads every input, writes events to output and, when store
// is not nil, batches them into store.
func runPipeline(ctx context.Context, opts Options, inputs []input, output, errOutput io.Writer, store sink.Sink) error {
	loc, err := opts.TimeLocation()
	if err != nil {
		return err
	}
	decOpts := []parser.Option{parser.WithLocation(loc)}
	if opts.DecimalFloats {
		decOpts = append(decOpts, parser.WithDecimalFloats())
	}

	emit := emitter.New(output, emitter.Options{
		Format:        opts.Output,
		Pretty:        opts.Pretty,
		Fields:        opts.Fields,
		AddTimestamp:  opts.AddTimestamp,
		AddLineNumber: opts.AddLineNumber,
	})
	defer emit.Close()

	g, gctx := errgroup.WithContext(ctx)

	var ig *ingest.Ingestor
	if store != nil {
		ig = ingest.NewIngestor(store, opts.Sink.QueueMaxSize, opts.Sink.BatchMaxSize, opts.Sink.BatchMaxWait)
		g.Go(func() error {
			return ig.Run(gctx)
		})
	}

	p := &pipeline{
		opts:      opts,
		emit:      emit,
		ingestor:  ig,
		runID:     uuid.New(),
		errOutput: errOutput,
		prefix:    len(inputs) > 1,
	}

	g.Go(func() error {
		if ig != nil {
			defer ig.Close()
		}
		for _, in := range inputs {
			rd := reader.New(in.r,
				reader.WithMaxLineSize(opts.MaxLineSize),
				reader.WithDecoderOptions(decOpts...))
			if err := p.process(gctx, in.name, rd); err != nil {
				return err
			}
		}
		return nil
	})

	err = g.Wait()

	// Print summary in verbose mode
	if opts.Verbose {
		fmt.Fprintf(errOutput, "processed %d lines, %d events, %d errors\n", p.lineCount, p.eventCount, p.errorCount)
		if ig != nil {
			written, dropped := ig.Stats()
			fmt.Fprintf(errOutput, "stored %d records, %d dropped\n", written, dropped)
		}
	}

	// Interrupted by a signal: not an error.
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

type pipeline struct {
	opts      Options
	emit      *emitter.Emitter
	ingestor  *ingest.Ingestor
	runID     uuid.UUID
	errOutput io.Writer
	prefix    bool

	lineCount  int
	eventCount int
	errorCount int
}

// process reads rd to the end. Malformed lines are reported and skipped
// unless the run is strict.
func (p *pipeline) process(ctx context.Context, name string, rd *reader.Reader) error {
	defer func() {
		p.lineCount += rd.Line()
	}()

	for {
		evt, err := rd.ReadContext(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var fe *parser.FormatError
			if !errors.As(err, &fe) {
				return fmt.Errorf("read %s: %w", name, err)
			}

			p.errorCount++
			if !p.opts.Quiet {
				fmt.Fprintf(p.errOutput, "%sparse error at line %d: %s\n", p.location(name), fe.Line, describe(fe))
			}
			if p.opts.Strict {
				return fmt.Errorf("%s%w", p.location(name), err)
			}
			continue
		}

		p.eventCount++
		if err := p.emit.Emit(evt, rd.Line()); err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		if p.ingestor != nil {
			rec, err := sink.NewRecord(p.runID, rd.Line(), evt)
			if err != nil {
				return err
			}
			if err := p.ingestor.Enqueue(ctx, rec); err != nil {
				return err
			}
		}
	}
}

func (p *pipeline) location(name string) string {
	if !p.prefix {
		return ""
	}
	return name + ": "
}

// describe renders a FormatError without its line prefix.
func describe(fe *parser.FormatError) string {
	if fe.Err == nil {
		return fe.Reason
	}
	return fe.Reason + ": " + fe.Err.Error()
}
