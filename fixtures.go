package main

import (
	"context"
	"fmt"
	"os"

	"ladder/internal/back"
	"ladder/internal/config"
	"ladder/internal/obslog"
	"ladder/internal/util"
)

func loadFixtures(conf *config.Config) error {
	algo, err := conf.Rating.Algorithm()
	if err != nil {
		return err
	}

	b, err := back.New("sqlite3", conf.Database.DSN, algo, back.WithLogger(obslog.S().Named("back")))
	if err != nil {
		return err
	}
	defer b.Close()

	players, err := b.LoadFixtures(context.Background())
	if err != nil {
		return err
	}

	for _, p := range players {
		token, err := conf.SignPlayerToken(p.ID, conf.HTTP.TokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%-8s %s %s\n", p.Name, p.ID, token)
	}

	return nil
}

func printToken(conf *config.Config, playerIDStr string) error {
	playerID, err := util.ParseUUIDAsBlob(playerIDStr)
	if err != nil {
		return err
	}

	token, err := conf.SignPlayerToken(playerID, conf.HTTP.TokenTTL)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, token)
	return nil
}
