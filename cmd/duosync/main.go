package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/duosync/internal/directory/app"
	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/spf13/pflag"
)

// commandEntities maps each command to the entities it syncs.
var commandEntities = map[string][]domain.Entity{
	"fetch-users":  {domain.EntityUsers, domain.EntityTokens, domain.EntityPhones},
	"fetch-groups": {domain.EntityGroups},
	"sync":         domain.AllEntities,
	"watch":        domain.AllEntities,
}

var errHelp = errors.New("help requested")

func main() {
	command, cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, errHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.ResolveCredentials(&cfg, os.Stdin, os.Stderr); err != nil {
		log.Fatalf("failed to resolve credentials: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if command == "watch" {
		err = application.Watch(os.Stdout)
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = application.RunOnce(ctx, os.Stdout)
		stop()
	}

	if shutdownErr := application.Shutdown(); err == nil {
		err = shutdownErr
	}
	if err != nil {
		log.Fatalf("application error: %v", err)
	}
}

// parseArgs resolves the command and the layered configuration. Flags win
// over environment variables, which win over the config file.
func parseArgs(args []string, stderr io.Writer) (string, app.Config, error) {
	var (
		configPath  string
		interactive bool
		driver      string
		dsn         string
		timezone    string
		pruneLinks  bool
		interval    time.Duration
		entityList  string
	)

	flagSet := pflag.NewFlagSet("duosync", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file (default: $DUOSYNC_CONFIG)")
	flagSet.BoolVar(&interactive, "interactive", false, "prompt for Duo credentials instead of reading them from config")
	flagSet.StringVar(&driver, "db-driver", "", "database driver: sqlite or postgres")
	flagSet.StringVar(&dsn, "db-dsn", "", "sqlite file path or postgres connection URL")
	flagSet.StringVar(&timezone, "timezone", "", "IANA zone used for last_login timestamps")
	flagSet.BoolVar(&pruneLinks, "prune-links", false, "remove group/token/phone links no longer present upstream")
	flagSet.DurationVar(&interval, "interval", 0, "sync interval for the watch command")
	flagSet.StringVar(&entityList, "entities", "", "comma separated entities to sync instead of the command's default (users,groups,tokens,phones or all)")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = func() { printHelp(flagSet, stderr) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return "", app.Config{}, errHelp
		}
		return "", app.Config{}, err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet, stderr)
		return "", app.Config{}, errHelp
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(flagSet, stderr)
		return "", app.Config{}, errors.New("missing command")
	}
	if len(rest) > 1 {
		return "", app.Config{}, fmt.Errorf("unexpected argument: %s", rest[1])
	}

	command := rest[0]
	entities, ok := commandEntities[command]
	if !ok {
		return "", app.Config{}, fmt.Errorf("unknown command %q", command)
	}

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return "", app.Config{}, err
	}
	cfg.Entities = domain.NewEntitySet(entities...)
	if flagSet.Changed("entities") {
		set, err := domain.ParseEntitySet(entityList)
		if err != nil {
			return "", app.Config{}, fmt.Errorf("invalid --entities: %w", err)
		}
		if len(set) == 0 {
			return "", app.Config{}, errors.New("invalid --entities: no entities given")
		}
		cfg.Entities = set
	}

	if flagSet.Changed("interactive") && interactive {
		cfg.CredentialSource = app.SourceInteractive
	}
	if flagSet.Changed("db-driver") {
		cfg.DatabaseDriver = driver
	}
	if flagSet.Changed("db-dsn") {
		cfg.DatabaseDSN = dsn
	}
	if flagSet.Changed("timezone") {
		cfg.Timezone = timezone
	}
	if flagSet.Changed("prune-links") {
		cfg.PruneLinks = pruneLinks
	}
	if flagSet.Changed("interval") {
		cfg.Interval = interval
	}

	if err := cfg.Validate(); err != nil {
		return "", app.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return command, cfg, nil
}

func printHelp(flagSet *pflag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `duosync mirrors the Duo Security directory into a local database.

Usage:
  duosync <command> [flags]

Commands:
  fetch-users    sync users with their tokens, phones and group links
  fetch-groups   sync groups
  sync           sync groups, then users, tokens and phones
  watch          run sync on an interval until interrupted

Credentials come from DUO_IKEY, DUO_SKEY and DUO_HOST (or the config
file) unless --interactive is given.

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
