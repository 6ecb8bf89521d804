package main

import (
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/alsijil/fs"
	"github.com/trezcool/alsijil/storage/database"
)

// mockable
var (
	gooseRunFunc  = goose.RunFS
	migrateUpFunc = database.Migrate
)

func (cli *commandLine) migrate(args []string) error {
	if args[0] == "up" && len(args) == 1 {
		return migrateUpFunc(cli.db)
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, appfs.FS, "migrations", arguments...)
}
