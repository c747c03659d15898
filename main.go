package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"
	"github.com/larkwiot/bookscout/internal"
	"github.com/larkwiot/bookscout/internal/config"
	"github.com/larkwiot/bookscout/internal/server"
	"github.com/larkwiot/bookscout/internal/util"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
)

type globalOptions struct {
	ConfigPath string `short:"c" long:"config" description:"filepath to configuration file" default:"./bookscout.toml"`
	Verbose    bool   `short:"v" long:"verbose" description:"log at debug level"`
	Version    bool   `long:"version" description:"print version"`
}

var opts globalOptions

type BookArgs struct {
	Isbn  string `long:"isbn" description:"ISBN-10 or ISBN-13, punctuation allowed"`
	Title string `long:"title" description:"title to use when there is no isbn"`
}

type pricesCommand struct {
	BookArgs
}

type libraryCommand struct {
	BookArgs
	Author    string `long:"author" description:"author, accepted for compatibility"`
	Publisher string `long:"publisher" description:"publisher, accepted for compatibility"`
}

type linksCommand struct {
	Args struct {
		Isbn string `positional-arg-name:"isbn" required:"yes"`
	} `positional-args:"yes"`
}

type searchCommand struct {
	Source string `short:"s" long:"source" description:"kakao, aladin or auto" default:"kakao"`
	Args   struct {
		Query string `positional-arg-name:"query" required:"yes"`
	} `positional-args:"yes"`
}

type lookupCommand struct {
	BookArgs
}

type batchCommand struct {
	OutputPath  string `short:"o" long:"output" description:"filepath to write JSON output to" default:"./books.json"`
	Cache       string `long:"cache" description:"filepath to previous JSON output to use as cache"`
	Threads     int    `short:"t" long:"threads" description:"number of lines to look up at once" default:"4"`
	DryRun      bool   `long:"dry-run" description:"do a dry-run (only build links, no requests)"`
	RetryFailed bool   `long:"retry" description:"retry incomplete lines (must also specify --cache)"`
	Args        struct {
		Input string `positional-arg-name:"input" required:"yes"`
	} `positional-args:"yes"`
}

type serveCommand struct {
	Listen string `short:"l" long:"listen" description:"address to listen on, overrides server.listen"`
}

func loadConfig(logger *log.Logger) (*config.Config, error) {
	path := util.ExpandUser(opts.ConfigPath)
	exists, err := util.PathExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.Warn("config file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	return config.NewConfig(path)
}

func setup() (*internal.BookManager, *config.Config, *log.Logger, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	conf, err := loadConfig(logger)
	if err != nil {
		return nil, nil, nil, err
	}

	logger.SetLevel(conf.LogLevel())
	if opts.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	bm, err := internal.NewBookManager(conf, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return bm, conf, logger, nil
}

func printJson(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (c *pricesCommand) Execute(args []string) error {
	bm, _, _, err := setup()
	if err != nil {
		return err
	}
	defer bm.Shutdown()

	ctx, cancel := signalContext()
	defer cancel()
	return printJson(bm.GetPrices(ctx, c.Isbn, c.Title))
}

func (c *libraryCommand) Execute(args []string) error {
	bm, _, _, err := setup()
	if err != nil {
		return err
	}
	defer bm.Shutdown()

	ctx, cancel := signalContext()
	defer cancel()

	availability, ok := bm.CheckAvailabilityWithDetails(ctx, c.Isbn, c.Title, c.Author, c.Publisher).Get()
	if !ok {
		return errors.New("library availability could not be determined")
	}
	return printJson(availability)
}

func (c *linksCommand) Execute(args []string) error {
	bm, _, _, err := setup()
	if err != nil {
		return err
	}
	defer bm.Shutdown()

	links, err := bm.BuildDeepLinks(c.Args.Isbn)
	if err != nil {
		return err
	}
	return printJson(links)
}

func (c *searchCommand) Execute(args []string) error {
	bm, _, _, err := setup()
	if err != nil {
		return err
	}
	defer bm.Shutdown()

	ctx, cancel := signalContext()
	defer cancel()

	results, err := bm.Search(ctx, c.Args.Query, c.Source)
	if err != nil {
		return err
	}
	return printJson(results)
}

func (c *lookupCommand) Execute(args []string) error {
	bm, _, _, err := setup()
	if err != nil {
		return err
	}
	defer bm.Shutdown()

	ctx, cancel := signalContext()
	defer cancel()
	return printJson(bm.Lookup(ctx, c.Isbn, c.Title))
}

func (c *batchCommand) Execute(args []string) error {
	if c.RetryFailed && len(c.Cache) == 0 {
		return errors.New("--cache must be specified to retry incomplete lines")
	}

	output, err := filepath.Abs(util.ExpandUser(c.OutputPath))
	if err != nil {
		return fmt.Errorf("could not get absolute output path: %w", err)
	}
	if exists, _ := util.PathExists(output); exists {
		return fmt.Errorf("output filepath %s already exists, refusing to overwrite", output)
	}

	bm, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer bm.Shutdown()

	if len(c.Cache) != 0 {
		if err := bm.Import(util.ExpandUser(c.Cache), c.RetryFailed); err != nil {
			return fmt.Errorf("failed to import cache %s: %w", c.Cache, err)
		}
	}

	outputWriter, err := util.NewJsonStreamWriter(output, func(report *internal.Report) (string, any) {
		return report.Query, report
	}, logger)
	if err != nil {
		return fmt.Errorf("unable to open output path %s: %w", output, err)
	}
	defer outputWriter.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return bm.Batch(ctx, util.ExpandUser(c.Args.Input), c.Threads, c.DryRun, outputWriter)
}

func (c *serveCommand) Execute(args []string) error {
	bm, conf, logger, err := setup()
	if err != nil {
		return err
	}
	defer bm.Shutdown()

	listen := c.Listen
	if len(listen) == 0 {
		listen = conf.Server.Listen
	}

	ctx, cancel := signalContext()
	defer cancel()

	return server.New(bm, logger).ListenAndServe(ctx, listen)
}

func printVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		log.Fatal("unable to get build info")
	}
	fmt.Println(info)
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true

	commands := []struct {
		name        string
		description string
		data        any
	}{
		{"prices", "compare prices across the online stores", &pricesCommand{}},
		{"library", "check whether the campus library can lend a book", &libraryCommand{}},
		{"links", "print store and library search links for an isbn", &linksCommand{}},
		{"search", "search external catalogues by keyword", &searchCommand{}},
		{"lookup", "prices, library availability and links in one report", &lookupCommand{}},
		{"batch", "look up every line of a file and write a JSON report", &batchCommand{}},
		{"serve", "serve the lookups over HTTP", &serveCommand{}},
	}
	for _, cmd := range commands {
		if _, err := parser.AddCommand(cmd.name, cmd.description, cmd.description, cmd.data); err != nil {
			log.Fatal(err)
		}
	}

	_, err := parser.Parse()
	if err != nil {
		// flags.Default already printed it
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		printVersion()
		return
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
}
