package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"sort"

	"github.com/trezcool/alsijil/core/datacheck"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db  *sql.DB
	svc *datacheck.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  run - run all data checks and notify the configured recipients")
	fmt.Println("  list - list the registered checks and their pending results")
	fmt.Println("  solve -result ID -option NAME - solve a check result")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	solveCmd := flag.NewFlagSet("solve", flag.ExitOnError)
	solveResult := solveCmd.String("result", "", "The check result ID to solve.")
	solveOption := solveCmd.String("option", "", "The solve option to apply, one of the check's options.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "run":
		return cli.runChecks()
	case "list":
		return cli.list()
	case "solve":
		if err := solveCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *solveResult == "" || *solveOption == "" {
			solveCmd.Usage()
			return errHelp
		}
		return cli.solve(*solveResult, *solveOption)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) runChecks() error {
	return cli.svc.RunChecks(context.Background())
}

func (cli *commandLine) list() error {
	ctx := context.Background()

	results, err := cli.svc.PendingResults(ctx)
	if err != nil {
		return err
	}
	pending := make(map[string]int, len(results))
	for _, res := range results {
		pending[res.Check]++
	}

	fmt.Println("Registered checks:")
	for _, check := range cli.svc.Registry().All() {
		fmt.Printf("  %s - %s (%d pending)\n", check.Name, check.VerboseName, pending[check.Name])

		options := make([]string, 0, len(check.SolveOptions))
		for name := range check.SolveOptions {
			options = append(options, name)
		}
		sort.Strings(options)
		for _, name := range options {
			fmt.Printf("    solve option: %s - %s\n", name, check.SolveOptions[name].VerboseName)
		}
	}

	fmt.Println("Pending results:")
	for _, res := range results {
		fmt.Printf("  %s - %s %s %s\n", res.ID, res.Check, res.ContentType, res.ObjectID)
	}
	return nil
}

func (cli *commandLine) solve(resultID, option string) error {
	ctx := context.Background()

	res, err := cli.svc.GetResult(ctx, resultID)
	if err != nil {
		return err
	}
	return cli.svc.Solve(ctx, res, option)
}
