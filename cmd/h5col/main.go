// Command h5col inspects h5col container files and exports their datasets as
// Arrow IPC streams or Parquet files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/alecthomas/kingpin.v2"
)

// env is the state shared by command handlers once flags are parsed.
type env struct {
	out    io.Writer
	cfg    *Config
	logger *zap.Logger
}

type handler func(ctx context.Context, e *env) error

type command func(app *kingpin.Application) (*kingpin.CmdClause, handler)

var commands = []command{
	lsCommand,
	schemaCommand,
	headCommand,
	exportCommand,
	demoCommand,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := kingpin.New("h5col", "Inspect h5col containers and export their datasets to Arrow or Parquet.")
	app.HelpFlag.Short('h')
	app.UsageWriter(stdout)
	app.ErrorWriter(stderr)

	configPath := app.Flag("config", "YAML or TOML configuration file").String()
	logLevel := app.Flag("log-level", "log level: debug, info, warn or error").String()
	var verify optionalBool
	app.Flag("verify-checksum", "verify dataset payload checksums (default true)").SetValue(&verify)

	handlers := map[string]handler{}
	for _, cmdFunction := range commands {
		cmd, h := cmdFunction(app)
		handlers[cmd.FullCommand()] = h
	}

	input, err := app.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "h5col: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "h5col: %v\n", err)
		return 2
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if verify.set {
		cfg.VerifyChecksum = &verify.value
	}

	logger, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "h5col: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	h, ok := handlers[input]
	if !ok {
		fmt.Fprintf(stderr, "h5col: unknown command %q\n", input)
		return 2
	}

	if err := h(ctx, &env{out: stdout, cfg: cfg, logger: logger}); err != nil {
		fmt.Fprintf(stderr, "h5col %s: %v\n", input, err)
		return 1
	}

	return 0
}

// newLogger writes to w: human-readable at debug level, JSON otherwise.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	enc := zapcore.NewJSONEncoder(encCfg)
	if lvl.Level() == zapcore.DebugLevel {
		encCfg = zap.NewDevelopmentEncoderConfig()
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}
