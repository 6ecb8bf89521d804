package main

import (
	"log"
	"os"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/datacheck"
	emailsvc "github.com/trezcool/alsijil/services/email"
	logsvc "github.com/trezcool/alsijil/services/logger"
	"github.com/trezcool/alsijil/storage/database"
	sqlxrepos "github.com/trezcool/alsijil/storage/database/sqlx"
)

var std *log.Logger

func main() {
	defer os.Exit(0)

	std = log.New(os.Stdout, "DATACHECKS : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std)
	logger.Enable(!core.Conf.Debug && !core.Conf.TestMode)

	// set up DB
	errAndDie(database.CreateIfNotExist())
	db, err := database.Open()
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	svc, err := datacheck.NewService(
		db,
		sqlxrepos.NewResultRepository(db),
		sqlxrepos.NewRegisterRepository(db),
		mailSvc,
		logger,
	)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:  db,
		svc: svc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		std.Fatal(err)
	}
}
