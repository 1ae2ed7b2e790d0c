package main

import (
	"flag"
	"fmt"
	"os"

	"ladder/internal/config"
	"ladder/internal/obslog"

	_ "github.com/mattn/go-sqlite3"
)

// Version holds the build-time version string.
var Version = "unknown" // nolint:gochecknoglobals

func main() {
	configPath := flag.String("config", "", "path to the YAML config file, defaults to the user config dir")
	flag.Parse()

	if err := run(*configPath, flag.Arg(0), flag.Args()); err != nil {
		obslog.S().Errorw("command failed", "command", flag.Arg(0), "error", err)
		obslog.Sync()
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	obslog.Sync()
}

func run(configPath, command string, args []string) error {
	switch command {
	case "version":
		fmt.Fprintf(os.Stdout, "Ladder %s\n", Version)
		return nil
	case "help":
		fmt.Fprint(os.Stdout, help())
		return nil
	case "serve", "migrate", "dev:fixtures", "token":
	default:
		fmt.Fprint(os.Stderr, help())
		os.Exit(1)
	}

	conf, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := obslog.Init(conf.Log.Level, conf.Log.Format); err != nil {
		return err
	}

	switch command {
	case "serve":
		return serve(conf)
	case "migrate":
		return migrateDB(conf)
	case "dev:fixtures":
		return loadFixtures(conf)
	case "token":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s token PLAYER_ID", os.Args[0])
		}
		return printToken(conf, args[1])
	}

	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewFromUserConfigDir()
	}

	conf := &config.Config{}
	if err := conf.ReloadFromFile(path); err != nil {
		return nil, err
	}

	return conf, nil
}

func help() string {
	return fmt.Sprintf(`
Ladder rates two-players games reported by their players, a game only
counts once the opponent confirmed it.

Usage: %[1]s [-config PATH] COMMAND [ARGS…]

COMMANDS
    serve             run the HTTP API, the standings sync and the account
                      events consumer
    migrate           apply the database migrations
    dev:fixtures      create rated players and games for quick testing during
                      development
    token PLAYER_ID   print a bearer token for the given player
    help              display this help
    version           display the current version

Configuration is read from %[2]s and can be overridden with LADDER_*
environment variables.
`,
		os.Args[0],
		"$XDG_CONFIG_HOME/ladder/config.yml",
	)
}
