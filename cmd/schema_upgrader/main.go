package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"

	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	"github.com/opst/drydock/pkg/conn/postgres/schema"
	kio "github.com/opst/drydock/pkg/io"
	"github.com/opst/drydock/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Host     string `flag:"host" help:"The host of the database."`
	Port     int    `flag:"port" help:"The port of the database."`
	User     string `flag:"user" help:"The user of the database."`
	Password string `flag:"pass" help:"The password of the database."`
	Database string `flag:"database" help:"The name of the database."`

	Schema string `flag:"schema" help:"The path to the schema repository directory."`
}

const ARG_SCHEMA_DEST = "ARG_SCHEMA_DEST"

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	port := 5432
	if sp := os.Getenv("DB_PORT"); sp != "" {
		if p, err := strconv.Atoi(sp); err == nil {
			port = p
		}
	}

	cmd := try.To(flarc.NewCommand(
		"database schema upgrader of drydock",
		Flag{
			Host:     os.Getenv("DB_HOST"),
			Port:     port,
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: os.Getenv("DB_NAME"),
			Schema:   os.Getenv("DRYDOCK_SCHEMA"),
		},
		flarc.Args{
			{
				Name: ARG_SCHEMA_DEST, Help: "The schema files are copied to this directory.",
				Required: false, Repeatable: false,
			},
		},
		func(ctx context.Context, c flarc.Commandline[Flag], _ []any) error {
			flags := c.Flags()

			if dest := c.Args()[ARG_SCHEMA_DEST]; len(dest) != 0 {
				logger.Printf("copying schema files into %s ...", dest[0])
				if err := kio.DirCopy(flags.Schema, dest[0]); err != nil {
					return err
				}
			}

			pool, err := kpool.Connect(ctx, fmt.Sprintf(
				"postgres://%s:%s@%s:%d/%s",
				flags.User, flags.Password, flags.Host, flags.Port, flags.Database,
			))
			if err != nil {
				return err
			}
			defer pool.Close()

			s := schema.New(pool, flags.Schema)
			before, err := s.Version(ctx)
			if err != nil {
				return err
			}
			if err := s.Upgrade(ctx); err != nil {
				return err
			}
			after, err := s.Version(ctx)
			if err != nil {
				return err
			}
			logger.Printf("schema version: %d -> %d", before, after)
			return nil
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}
