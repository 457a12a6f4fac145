package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	logsvc "github.com/TTR-x/ttr-gestion-sub002/services/logger"
	"github.com/TTR-x/ttr-gestion-sub002/storage/database"
	sqlxrepos "github.com/TTR-x/ttr-gestion-sub002/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	if conf.Database.Engine != "postgres" {
		logger.Fatal(fmt.Sprintf("admin needs the postgres engine (got %q)", conf.Database.Engine))
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)

	// start CLI
	repos := sqlxrepos.NewRepositories(db)
	cli := commandLine{
		db:         db,
		validate:   validate,
		memberSvc:  member.NewService(repos.Members, logger),
		deviceRepo: repos.Devices,
		ledgerRepo: repos.Ledger,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}
