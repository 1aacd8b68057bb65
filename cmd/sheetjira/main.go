package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/homemade/sheetjira/sync"
)

const usage = `sheetjira creates Jira tickets from spreadsheet rows and keeps their status in sync.

Usage:
  sheetjira [global flags] <command> [flags]

Commands:
  auth           test the stored Jira connection
  create         create tickets for the rows of a workbook tab
  sync-status    refresh the Status column of a workbook tab
  config         show and edit the stored configuration (see "sheetjira config help")
  serve          serve the configuration API

Global flags:
  --store PATH      property database (default $SHEETJIRA_STORE or ~/.sheetjira/properties.db)
  --env-file PATH   .env file with JIRA_URL, JIRA_EMAIL, JIRA_API_TOKEN (default .env)
`

type globalOptions struct {
	storePath string
	envFile   string
}

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// run executes one command. Deferred cleanup finishes before main exits on the returned error.
func run(argv []string) error {
	global := pflag.NewFlagSet("sheetjira", pflag.ContinueOnError)
	global.SetInterspersed(false)
	var opts globalOptions
	global.StringVar(&opts.storePath, "store", defaultStorePath(), "property database")
	global.StringVar(&opts.envFile, "env-file", ".env", ".env file")
	help := global.BoolP("help", "h", false, "show help")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	args := global.Args()
	if *help || len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return nil
	}

	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to read %s: %v", opts.envFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch args[0] {
	case "auth":
		err = runAuth(ctx, opts, args[1:])
	case "create":
		err = runCreate(ctx, opts, args[1:])
	case "sync-status":
		err = runSyncStatus(ctx, opts, args[1:])
	case "config":
		err = runConfig(opts, args[1:])
	case "serve":
		err = runServe(opts, args[1:])
	case "help":
		fmt.Fprint(os.Stderr, usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}

func defaultStorePath() string {
	if p := os.Getenv("SHEETJIRA_STORE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "sheetjira.db"
	}
	return filepath.Join(home, ".sheetjira", "properties.db")
}

// openSettings opens the property database. The caller closes the returned store.
func openSettings(opts globalOptions) (sync.SettingsStore, *sync.SQLitePropertyStore, error) {
	props, err := sync.OpenSQLitePropertyStore(opts.storePath)
	if err != nil {
		return sync.SettingsStore{}, nil, err
	}
	return sync.SettingsStore{Properties: props}, props, nil
}

// loadConfiguration reads the stored configuration and overlays the connection from the environment.
func loadConfiguration(opts globalOptions) (sync.Configuration, error) {
	store, props, err := openSettings(opts)
	if err != nil {
		return sync.Configuration{}, err
	}
	defer props.Close()
	config, err := store.Load()
	if err != nil {
		return config, err
	}
	config.Settings.Connection = sync.ConnectionFromEnvironment(config.Settings.Connection)
	return config, nil
}

func runAuth(ctx context.Context, opts globalOptions, args []string) error {
	flags := pflag.NewFlagSet("auth", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	config, err := loadConfiguration(opts)
	if err != nil {
		return err
	}
	name, err := sync.JiraAuthTester(ctx, config.Settings.Connection)
	if err != nil {
		return err
	}
	fmt.Println(sync.RenderDialog("Connection OK", fmt.Sprintf("Authenticated as %s on %s", name, config.Settings.Connection.BaseURL)))
	return nil
}

type sheetFlags struct {
	workbook string
	tab      string
	record   bool
}

func (s *sheetFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&s.workbook, "workbook", "w", "", "path of the .xlsx workbook")
	flags.StringVarP(&s.tab, "tab", "t", "", "sheet tab (default: the first tab)")
	flags.BoolVar(&s.record, "record", false, "record Jira traffic under testdata/.requests")
}

func (s *sheetFlags) open() (*sync.Workbook, *sync.WorkbookSheet, error) {
	if s.workbook == "" {
		return nil, nil, errors.New("--workbook is required")
	}
	wb, err := sync.OpenWorkbook(s.workbook)
	if err != nil {
		return nil, nil, err
	}
	if s.tab == "" {
		names := wb.SheetNames()
		if len(names) == 0 {
			wb.Close()
			return nil, nil, fmt.Errorf("workbook %s has no sheets", s.workbook)
		}
		s.tab = names[0]
	}
	sheet, err := wb.Sheet(s.tab)
	if err != nil {
		wb.Close()
		return nil, nil, err
	}
	return wb, sheet, nil
}

func newController(config sync.Configuration, s sheetFlags, prompter sync.Prompter) *sync.SheetSyncController {
	sc := &sync.SyncContext{Config: config, Tab: s.tab, RecordRequests: s.record}
	return sync.NewSheetSyncController(sc, sync.JiraFetcherAndUpdater{SyncContext: sc}, prompter)
}

func runCreate(ctx context.Context, opts globalOptions, args []string) error {
	flags := pflag.NewFlagSet("create", pflag.ContinueOnError)
	var s sheetFlags
	s.register(flags)
	rows := flags.StringSlice("rows", nil, "1-based rows to create (default: every row, honouring the Process column)")
	template := flags.String("template", "", "create from a ticket template")
	yes := flags.BoolP("yes", "y", false, "continue with the valid rows without asking")
	if err := flags.Parse(args); err != nil {
		return err
	}
	selected, err := parseRows(*rows)
	if err != nil {
		return err
	}

	config, err := loadConfiguration(opts)
	if err != nil {
		return err
	}
	wb, sheet, err := s.open()
	if err != nil {
		return err
	}
	defer wb.Close()

	controller := newController(config, s, sync.NewConsolePrompter(*yes))
	report, err := controller.CreateTickets(ctx, sheet, sync.CreateOptions{Rows: selected, Template: *template})
	if len(report.Created) > 0 {
		if saveErr := wb.Save(); saveErr != nil {
			log.Printf("Warning: %v", saveErr)
		}
	}
	if err != nil {
		return err
	}
	fmt.Println(sync.RenderDialog("Create tickets: "+sheet.Name(), report.Summary()))
	return nil
}

func parseRows(values []string) ([]int, error) {
	var result []int
	for _, v := range values {
		v = strings.TrimSpace(v)
		if from, to, ok := strings.Cut(v, "-"); ok {
			a, errA := strconv.Atoi(from)
			b, errB := strconv.Atoi(to)
			if errA != nil || errB != nil || a > b {
				return nil, fmt.Errorf("invalid row range %q", v)
			}
			for n := a; n <= b; n++ {
				result = append(result, n)
			}
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid row %q", v)
		}
		result = append(result, n)
	}
	return result, nil
}

func runSyncStatus(ctx context.Context, opts globalOptions, args []string) error {
	flags := pflag.NewFlagSet("sync-status", pflag.ContinueOnError)
	var s sheetFlags
	s.register(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	config, err := loadConfiguration(opts)
	if err != nil {
		return err
	}
	wb, sheet, err := s.open()
	if err != nil {
		return err
	}
	defer wb.Close()

	report, err := newController(config, s, nil).SyncStatus(ctx, sheet)
	if report.Checked > 0 {
		if saveErr := wb.Save(); saveErr != nil {
			log.Printf("Warning: %v", saveErr)
		}
	}
	if err != nil {
		return err
	}
	fmt.Println(sync.RenderDialog("Status sync: "+sheet.Name(), report.Summary()))
	return nil
}

func runServe(opts globalOptions, args []string) error {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addr := flags.String("addr", "127.0.0.1:8080", "listen address")
	if err := flags.Parse(args); err != nil {
		return err
	}
	store, props, err := openSettings(opts)
	if err != nil {
		return err
	}
	defer props.Close()
	log.Printf("configuration API listening on http://%s/api", *addr)
	return sync.NewConfigServer(store, sync.JiraAuthTester).Run(*addr)
}
