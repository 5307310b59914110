package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/minidb-storage/minidb/dbms/btree"
)

func main() {
	dbPath := flag.String("db", "test.db", "database file")
	debug := flag.Bool("debug", false, "log structural changes and verify the tree at open")
	flag.Parse()

	logger := zap.NewNop()
	if *debug {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatalf("logger: %v", err)
		}
	}

	tbl, err := btree.Open(*dbPath, btree.WithLogger(logger))
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	if *debug {
		if err := tbl.Check(); err != nil {
			log.Fatalf("integrity check at open: %v", err)
		}
	}

	fmt.Println("minidb (sqlite-like toy DB)")
	fmt.Println("Enter .exit to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("minidb> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if doMetaCommand(tbl, line) {
				break
			}
			continue
		}

		stmt, err := prepareStatement(line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if err := executeStatement(tbl, stmt); err != nil {
			// Only duplicate and missing keys are recoverable; any other
			// error ends the session without flushing the tree.
			if !errors.Is(err, btree.ErrDuplicateKey) && !errors.Is(err, btree.ErrKeyNotFound) {
				log.Fatalf("execute: %v", err)
			}
			fmt.Printf("Error: %v\n", err)
		}
	}

	if err := tbl.Close(); err != nil {
		log.Fatalf("close: %v", err)
	}
	fmt.Println("Bye!")
}
