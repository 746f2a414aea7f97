package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/app"
	"github.com/noah-isme/sms-storage/internal/service"
	"github.com/noah-isme/sms-storage/pkg/config"
	"github.com/noah-isme/sms-storage/pkg/logger"
)

const usage = `usage: sms-admin [flags] <command> [args]

commands:
  mode get                      show the active storage mode
  mode set <local|cloud>        persist a storage mode and re-initialize
  import <file.csv|file.xlsx>   add students from a roster file
  export <year> <month> [csv|pdf] [-o file]
                                render a month of attendance
  migrate                       copy local data to the cloud store
  admin-password <new>          reset the administrator password
`

var errUsage = errors.New("invalid usage")

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall command timeout")
	verbose := flag.Bool("v", false, "log to stderr")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := zap.NewNop()
	if *verbose {
		if logr, err = logger.New(cfg); err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stack, err := app.Build(ctx, cfg, logr)
	if err != nil {
		log.Fatalf("failed to build storage: %v", err)
	}
	defer stack.Close() //nolint:errcheck

	if err := run(ctx, stack, flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stack *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := stack.Adapter.Init(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "mode":
		return runMode(ctx, stack, args[1:], out)
	case "import":
		if len(args) != 2 {
			return errUsage
		}
		return runImport(ctx, stack, args[1], out)
	case "export":
		return runExport(ctx, stack, args[1:], out)
	case "migrate":
		if stack.Cloud == nil {
			return errors.New("no cloud store configured; set CLOUD_DRIVER")
		}
		report, err := service.NewMigrator(stack.Local, stack.Cloud, stack.Logger).MigrateAll(ctx)
		if report != nil {
			_ = printJSON(out, report)
		}
		return err
	case "admin-password":
		if len(args) != 2 {
			return errUsage
		}
		if err := stack.Adapter.ChangeAdminPassword(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "admin password updated (%s storage)\n", stack.Adapter.Mode())
		return nil
	default:
		return errUsage
	}
}

func runMode(ctx context.Context, stack *app.App, args []string, out io.Writer) error {
	switch {
	case len(args) == 1 && args[0] == "get":
		return printJSON(out, stack.Adapter.Status())
	case len(args) == 2 && args[0] == "set":
		if _, err := stack.Adapter.SetMode(ctx, args[1]); err != nil {
			return err
		}
		if err := stack.Adapter.Init(ctx); err != nil {
			return err
		}
		return printJSON(out, stack.Adapter.Status())
	default:
		return errUsage
	}
}

func runImport(ctx context.Context, stack *app.App, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	students := service.NewStudentService(stack.Adapter, nil, stack.Logger)
	result, err := service.NewRosterService(students, stack.Logger).Import(ctx, path, f)
	if err != nil {
		return err
	}
	return printJSON(out, result)
}

func runExport(ctx context.Context, stack *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	target := fs.String("o", "", "output file (defaults to the generated name)")
	if len(args) < 2 {
		return errUsage
	}
	year, yerr := strconv.Atoi(args[0])
	month, merr := strconv.Atoi(args[1])
	if yerr != nil || merr != nil {
		return errUsage
	}
	rest := args[2:]
	formatArg := ""
	if len(rest) > 0 && rest[0] != "" && rest[0][0] != '-' {
		formatArg, rest = rest[0], rest[1:]
	}
	if err := fs.Parse(rest); err != nil {
		return errUsage
	}
	format, err := service.ParseExportFormat(formatArg)
	if err != nil {
		return err
	}

	file, err := service.NewExportService(stack.Adapter, stack.Logger, nil, nil).ExportMonth(ctx, year, time.Month(month), format)
	if err != nil {
		return err
	}
	path := *target
	if path == "" {
		path = file.Filename
	}
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d bytes)\n", path, len(file.Data))
	return nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
