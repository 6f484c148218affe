package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ankur-anand/xlogview/cmd/xlogctl/cliapp"
	"github.com/ankur-anand/xlogview/cmd/xlogctl/config"
	"github.com/ankur-anand/xlogview/internal/xlogctl/catalog"
	"github.com/ankur-anand/xlogview/internal/xlogctl/filter"
	"github.com/ankur-anand/xlogview/internal/xlogctl/inspect"
	"github.com/ankur-anand/xlogview/internal/xlogctl/output"
	"github.com/ankur-anand/xlogview/internal/xlogctl/segment"
	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/urfave/cli/v2"
)

const runtimeKey = "runtime"

type runtimeEnv struct {
	cfg     config.Config
	logger  *slog.Logger
	segSize uint64
}

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Value:   "table",
	Usage:   "Output format: table, json",
}

var walDirFlag = &cli.StringFlag{
	Name:    "wal-dir",
	Aliases: []string{"w"},
	Usage:   "Path to the pg_wal directory (default: wal_dir from config)",
}

var catalogFlag = &cli.StringFlag{
	Name:  "catalog",
	Usage: "Path to an imported relation catalog (default: catalog_path from config)",
}

var filterFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "text",
		Usage: "Only records whose description contains this text",
	},
	&cli.StringSliceFlag{
		Name:  "rmgr",
		Usage: "Only records of these resource managers (repeatable)",
	},
	&cli.BoolFlag{
		Name:  "interesting",
		Usage: "Only heap, heap2 and transaction records",
	},
	&cli.StringFlag{
		Name:  "upto",
		Usage: "Hide records past this LSN (e.g. 16/B374D848)",
	},
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "xlogctl",
		Usage:    "PostgreSQL WAL segment viewer",
		Version:  "0.1.0",
		Metadata: map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "TOML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Before: setupRuntime,
		Commands: []*cli.Command{
			segmentsCommand(),
			recordsCommand(),
			statsCommand(),
			tailCommand(),
			catalogCommand(),
			serveCommand(),
			lsnCommand(),
		},
	}
}

func setupRuntime(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), c.IsSet("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.LogConfig.LogLevel = c.String("log-level")
	}

	logger, err := cliapp.NewLogger(cfg.LogConfig)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	segSize, err := cfg.SegmentBytes()
	if err != nil {
		return err
	}

	c.App.Metadata[runtimeKey] = &runtimeEnv{cfg: cfg, logger: logger, segSize: segSize}
	return nil
}

func getRuntime(c *cli.Context) *runtimeEnv {
	return c.App.Metadata[runtimeKey].(*runtimeEnv)
}

func getFormatter(c *cli.Context) (output.Formatter, error) {
	format := c.String("format")
	if format != "table" && format != "json" {
		return nil, fmt.Errorf("invalid format %q: must be 'table' or 'json'", format)
	}
	return output.NewFormatter(output.Format(format)), nil
}

func walDir(c *cli.Context) (string, error) {
	if dir := c.String("wal-dir"); dir != "" {
		return dir, nil
	}
	if dir := getRuntime(c).cfg.WalDir; dir != "" {
		return dir, nil
	}
	return "", errors.New("WAL directory not set: pass --wal-dir or set wal_dir in the config")
}

// targetFile returns --file, or the newest segment of the WAL directory.
func targetFile(c *cli.Context) (string, error) {
	if file := c.String("file"); file != "" {
		return file, nil
	}
	dir, err := walDir(c)
	if err != nil {
		return "", err
	}
	latest, err := segment.Latest(dir)
	if err != nil {
		return "", err
	}
	return latest.Path, nil
}

func buildFilter(c *cli.Context) (filter.Filter, error) {
	cfg := getRuntime(c).cfg.Filter
	if c.IsSet("text") {
		cfg.Text = c.String("text")
	}
	if c.IsSet("rmgr") {
		cfg.Rmgrs = c.StringSlice("rmgr")
	}
	if c.IsSet("interesting") {
		cfg.InterestingOnly = c.Bool("interesting")
	}
	if c.IsSet("upto") {
		cfg.UptoLSN = c.String("upto")
	}
	return filter.FromConfig(cfg)
}

// loadResolver opens the catalog read-only and returns its names. No
// configured catalog yields a nil resolver.
func loadResolver(c *cli.Context) (catalog.Resolver, error) {
	path := c.String("catalog")
	if path == "" {
		path = getRuntime(c).cfg.CatalogPath
	}
	if path == "" {
		return nil, nil
	}

	store, err := catalog.OpenStore(path, true)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	names, err := store.Names()
	if err != nil {
		return nil, err
	}
	return names, nil
}

func inspectOptions(c *cli.Context) (inspect.Options, error) {
	rt := getRuntime(c)
	flt, err := buildFilter(c)
	if err != nil {
		return inspect.Options{}, err
	}
	resolver, err := loadResolver(c)
	if err != nil {
		return inspect.Options{}, err
	}
	return inspect.Options{
		Filter:      flt,
		Resolver:    resolver,
		RawIDs:      c.Bool("raw-ids"),
		SegmentSize: rt.segSize,
		Logger:      rt.logger,
	}, nil
}

func segmentsCommand() *cli.Command {
	return &cli.Command{
		Name:   "segments",
		Usage:  "List the WAL segments of a directory",
		Flags:  []cli.Flag{walDirFlag, formatFlag},
		Action: segmentsAction,
	}
}

func segmentsAction(c *cli.Context) error {
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}
	dir, err := walDir(c)
	if err != nil {
		return err
	}

	segments, err := inspect.ListSegments(dir, getRuntime(c).segSize)
	if err != nil {
		return err
	}
	return formatter.WriteSegmentList(c.App.Writer, segments)
}

func recordsCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "WAL file to decode (default: newest segment of --wal-dir)",
		},
		walDirFlag,
		&cli.Int64Flag{
			Name:  "offset",
			Usage: "Start decoding at this byte offset (rounded down to a page)",
		},
		&cli.BoolFlag{
			Name:  "raw-ids",
			Usage: "Show relations as spc/db/rel with names in brackets",
		},
		&cli.BoolFlag{
			Name:  "reassemble",
			Usage: "Splice records that cross pages before reading block references",
		},
		catalogFlag,
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Show at most this many records (0 for all)",
		},
		formatFlag,
	}
	return &cli.Command{
		Name:   "records",
		Usage:  "Decode the records of a WAL file",
		Flags:  append(flags, filterFlags...),
		Action: recordsAction,
	}
}

func recordsAction(c *cli.Context) error {
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}
	path, err := targetFile(c)
	if err != nil {
		return err
	}
	opts, err := inspectOptions(c)
	if err != nil {
		return err
	}
	opts.StartOffset = c.Int64("offset")
	opts.Reassemble = c.Bool("reassemble")
	opts.Limit = c.Int("limit")

	report, err := inspect.InspectFile(path, opts)
	if err != nil {
		return err
	}
	return formatter.WriteRecordReport(c.App.Writer, *report)
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show aggregate record statistics for a WAL directory",
		Flags:  append([]cli.Flag{walDirFlag, formatFlag}, filterFlags...),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}
	dir, err := walDir(c)
	if err != nil {
		return err
	}
	flt, err := buildFilter(c)
	if err != nil {
		return err
	}

	rt := getRuntime(c)
	stats, err := inspect.GetStats(c.Context, dir, inspect.Options{
		Filter:      flt,
		SegmentSize: rt.segSize,
		Logger:      rt.logger,
	})
	if err != nil {
		return err
	}
	return formatter.WriteWalStats(c.App.Writer, *stats)
}

func tailCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "WAL file to follow (default: newest segment of --wal-dir)",
		},
		walDirFlag,
		&cli.BoolFlag{
			Name:  "from-start",
			Usage: "Print the records already in the file first",
		},
		&cli.BoolFlag{
			Name:  "raw-ids",
			Usage: "Show relations as spc/db/rel with names in brackets",
		},
		catalogFlag,
		formatFlag,
	}
	return &cli.Command{
		Name:   "tail",
		Usage:  "Follow a WAL segment that is being written",
		Flags:  append(flags, filterFlags...),
		Action: tailAction,
	}
}

func tailAction(c *cli.Context) error {
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}
	path, err := targetFile(c)
	if err != nil {
		return err
	}
	opts, err := inspectOptions(c)
	if err != nil {
		return err
	}
	initial, ceiling, err := getRuntime(c).cfg.Tail.Intervals()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("[xlogview.main] Following segment", "path", path)
	return inspect.Tail(ctx, path, inspect.TailOptions{
		Options:         opts,
		FromStart:       c.Bool("from-start"),
		InitialInterval: initial,
		MaxInterval:     ceiling,
	}, func(batch []output.RecordInfo) error {
		return formatter.WriteRecords(c.App.Writer, batch)
	})
}

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Relation name catalog commands",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import a TOML catalog snapshot, replacing the stored one",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "snapshot",
						Aliases:  []string{"s"},
						Required: true,
						Usage:    "TOML snapshot with [[database]] and [[relation]] tables",
					},
					catalogFlag,
					formatFlag,
				},
				Action: catalogImportAction,
			},
			{
				Name:   "show",
				Usage:  "Summarize the stored catalog",
				Flags:  []cli.Flag{catalogFlag, formatFlag},
				Action: catalogShowAction,
			},
		},
	}
}

func catalogPath(c *cli.Context) (string, error) {
	if path := c.String("catalog"); path != "" {
		return path, nil
	}
	if path := getRuntime(c).cfg.CatalogPath; path != "" {
		return path, nil
	}
	return "", errors.New("catalog path not set: pass --catalog or set catalog_path in the config")
}

func catalogImportAction(c *cli.Context) error {
	path, err := catalogPath(c)
	if err != nil {
		return err
	}
	snap, err := catalog.LoadSnapshot(c.String("snapshot"))
	if err != nil {
		return err
	}

	store, err := catalog.OpenStore(path, false)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Import(snap); err != nil {
		return err
	}
	slog.Info("[xlogview.main] Catalog imported",
		"path", path,
		"databases", len(snap.Databases),
		"relations", len(snap.Relations),
	)
	return writeCatalogSummary(c, store, path)
}

func catalogShowAction(c *cli.Context) error {
	path, err := catalogPath(c)
	if err != nil {
		return err
	}
	store, err := catalog.OpenStore(path, true)
	if err != nil {
		return err
	}
	defer store.Close()

	return writeCatalogSummary(c, store, path)
}

func writeCatalogSummary(c *cli.Context, store *catalog.Store, path string) error {
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}
	names, err := store.Names()
	if err != nil {
		return err
	}
	importedAt, err := store.ImportedAt()
	if err != nil {
		return err
	}
	databases, relations := names.Len()
	return formatter.WriteCatalogSummary(c.App.Writer, output.CatalogSummary{
		Path:       path,
		Databases:  databases,
		Relations:  relations,
		ImportedAt: importedAt,
	})
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the WAL directory over HTTP",
		Flags: []cli.Flag{
			walDirFlag,
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "HTTP port (default: http.port from config)",
			},
			catalogFlag,
			&cli.BoolFlag{
				Name:  "no-banner",
				Usage: "Do not print the startup banner",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	rt := getRuntime(c)
	cfg := rt.cfg

	dir, err := walDir(c)
	if err != nil {
		return err
	}
	cfg.WalDir = dir
	if c.IsSet("port") {
		cfg.HTTP.Port = c.Int("port")
	}
	if c.IsSet("catalog") {
		cfg.CatalogPath = c.String("catalog")
	}

	if !c.Bool("no-banner") {
		cliapp.PrintBanner(c.App.Writer, cliapp.BannerInfo{
			WalDir:      dir,
			SegmentSize: rt.segSize,
			Addr:        fmt.Sprintf("%s:%d", cfg.HTTP.ListenIP, cfg.HTTP.Port),
		})
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return cliapp.Run(ctx, cfg, rt.logger)
}

func lsnCommand() *cli.Command {
	return &cli.Command{
		Name:  "lsn",
		Usage: "Convert between LSNs and segment file names",
		Subcommands: []*cli.Command{
			{
				Name:  "segment",
				Usage: "Print the segment file name holding an LSN",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "lsn",
						Required: true,
						Usage:    "LSN such as 16/B374D848",
					},
					&cli.UintFlag{
						Name:  "timeline",
						Value: 1,
						Usage: "Timeline id",
					},
				},
				Action: lsnSegmentAction,
			},
			{
				Name:  "base",
				Usage: "Print the start LSN of a segment file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Required: true,
						Usage:    "Segment file name or path",
					},
				},
				Action: lsnBaseAction,
			},
		},
	}
}

func lsnSegmentAction(c *cli.Context) error {
	lsn, err := xlog.ParseLSN(c.String("lsn"))
	if err != nil {
		return fmt.Errorf("invalid lsn %q: %w", c.String("lsn"), err)
	}
	tli := c.Uint("timeline")
	if tli == 0 || uint64(tli) > uint64(^uint32(0)) {
		return fmt.Errorf("invalid timeline %d", tli)
	}

	name := xlog.SegmentNameFor(uint32(tli), lsn, getRuntime(c).segSize)
	_, err = fmt.Fprintln(c.App.Writer, name.String())
	return err
}

func lsnBaseAction(c *cli.Context) error {
	name := c.String("name")
	seg, err := xlog.ParseSegmentName(trimPartial(name))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, seg.StartLSN(getRuntime(c).segSize).String())
	return err
}

func trimPartial(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext == ".partial" {
		return base[:len(base)-len(ext)]
	}
	return base
}
