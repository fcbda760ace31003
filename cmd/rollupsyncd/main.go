// Command rollupsyncd runs the per-user UserState synchroniser as a
// standalone daemon: it loads a YAML config, opens the configured rollupdb
// backend and rollup data provider, brings every configured user's
// UserState up to MONITORING, and blocks until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/config"
	"github.com/tos-network/rollupsync/log"
	"github.com/tos-network/rollupsync/provider"
	"github.com/tos-network/rollupsync/rollupdb"
	"github.com/tos-network/rollupsync/types"
	"github.com/tos-network/rollupsync/userstate"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "path to the rollupsyncd YAML config file",
		Required: true,
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "override the config file's log.level",
	}
)

func main() {
	app := &cli.App{
		Name:  "rollupsyncd",
		Usage: "synchronise per-user rollup state against a note-encrypted L2",
		Flags: []cli.Flag{configFlag, verbosityFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if v := c.String("verbosity"); v != "" {
		cfg.Log.Level = v
	}
	logger := log.New("component", "rollupsyncd")

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	prov, err := openProvider(cfg.Provider)
	if err != nil {
		return err
	}

	factory := userstate.NewFactory(userstate.Deps{
		DB:       db,
		Provider: prov,
		Logger:   logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	states, err := startUsers(ctx, db, factory, cfg.Users, logger)
	if err != nil {
		return err
	}

	logger.Info("rollupsyncd started", "users", len(states))
	<-ctx.Done()
	logger.Info("rollupsyncd stopping")
	for _, us := range states {
		if err := us.StopSync(true); err != nil {
			logger.Warn("stop sync failed", "account", us.AccountId().PublicKey.Hex(), "err", err)
		}
	}
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (rollupdb.Database, error) {
	switch cfg.Kind {
	case "memory":
		return rollupdb.NewMemoryDB(), nil
	case "bolt":
		return rollupdb.OpenBolt(cfg.Path)
	default:
		return nil, fmt.Errorf("rollupsyncd: unknown database kind %q", cfg.Kind)
	}
}

func openProvider(cfg config.ProviderConfig) (provider.RollupProvider, error) {
	switch cfg.Kind {
	case "memory":
		return provider.NewMemoryProvider(), nil
	case "http":
		return provider.NewHTTPProvider(cfg.URL), nil
	default:
		return nil, fmt.Errorf("rollupsyncd: unknown provider kind %q", cfg.Kind)
	}
}

// startUsers ensures a local user record exists for every configured
// account (registering one on first run), constructs its UserState via
// factory, and starts synchronisation.
func startUsers(ctx context.Context, db rollupdb.Database, factory *userstate.Factory, users []config.UserConfig, logger log.Logger) ([]*userstate.UserState, error) {
	var states []*userstate.UserState
	for _, uc := range users {
		id := types.AccountId{
			PublicKey: common.BytesToKey32(common.MustDecodeHex(uc.PublicKeyHex)),
			Nonce:     uc.Nonce,
		}
		existing, err := db.GetUser(id)
		if err != nil {
			return nil, fmt.Errorf("rollupsyncd: load user %s: %w", id.PublicKey.Hex(), err)
		}
		if existing == nil {
			if err := db.UpdateUser(&types.UserData{Id: id, PublicKey: id.PublicKey, Nonce: id.Nonce, SyncedToRollup: -1}); err != nil {
				return nil, fmt.Errorf("rollupsyncd: register user %s: %w", id.PublicKey.Hex(), err)
			}
		}

		us, err := factory.New(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("rollupsyncd: construct user state %s: %w", id.PublicKey.Hex(), err)
		}
		if err := us.StartSync(ctx); err != nil {
			return nil, fmt.Errorf("rollupsyncd: start sync %s: %w", id.PublicKey.Hex(), err)
		}
		logger.Info("user state started", "account", id.PublicKey.Hex(), "nonce", id.Nonce)
		states = append(states, us)
	}
	return states, nil
}
