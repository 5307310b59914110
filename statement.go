package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/minidb-storage/minidb/dbms/btree"
)

type statementType int

const (
	stmtInsert statementType = iota
	stmtSelect
	stmtDelete
)

type statement struct {
	typ statementType
	row btree.Row
	key int32
}

// prepareStatement parses one line of the textual grammar:
//
//	insert <id> <username> <email>
//	select
//	delete <id>
func prepareStatement(line string) (*statement, error) {
	fields := strings.Fields(line)

	switch strings.ToLower(fields[0]) {
	case "insert":
		if len(fields) != 4 {
			return nil, errors.New("syntax: insert <id> <username> <email>")
		}
		id, err := parseKey(fields[1])
		if err != nil {
			return nil, err
		}
		row, err := btree.NewRow(id, fields[2], fields[3])
		if err != nil {
			return nil, err
		}
		return &statement{typ: stmtInsert, row: row}, nil

	case "select":
		if len(fields) != 1 {
			return nil, errors.New("syntax: select")
		}
		return &statement{typ: stmtSelect}, nil

	case "delete":
		if len(fields) != 2 {
			return nil, errors.New("syntax: delete <id>")
		}
		key, err := parseKey(fields[1])
		if err != nil {
			return nil, err
		}
		return &statement{typ: stmtDelete, key: key}, nil

	default:
		return nil, errors.Errorf("unrecognized keyword at start of %q", line)
	}
}

func parseKey(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.Errorf("id %q is not a 32-bit integer", s)
	}
	return int32(id), nil
}

func executeStatement(tbl *btree.Table, stmt *statement) error {
	switch stmt.typ {
	case stmtInsert:
		if err := tbl.Insert(stmt.row); err != nil {
			return err
		}
		fmt.Println("Executed.")
		return nil

	case stmtSelect:
		c, err := tbl.Start()
		if err != nil {
			return err
		}
		for !c.EndOfTable {
			row, err := c.Row()
			if err != nil {
				return err
			}
			fmt.Printf("(%d, %s, %s)\n", row.ID, row.Username, row.Email)
			if err := c.Advance(); err != nil {
				return err
			}
		}
		fmt.Println("Executed.")
		return nil

	case stmtDelete:
		if err := tbl.Delete(stmt.key); err != nil {
			return err
		}
		fmt.Println("Executed.")
		return nil
	}
	return errors.New("unreachable statement type")
}

// doMetaCommand handles dot commands; it reports whether the REPL should
// exit.
func doMetaCommand(tbl *btree.Table, line string) bool {
	fields := strings.Fields(line)

	switch fields[0] {
	case ".exit":
		return true

	case ".btree":
		if err := tbl.WriteTree(os.Stdout); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

	case ".check":
		if err := tbl.Check(); err != nil {
			fmt.Printf("Integrity: FAILED: %v\n", err)
		} else {
			fmt.Println("Integrity: OK")
		}

	case ".constants":
		fmt.Println("Constants:")
		fmt.Printf("ROW_SIZE: %d\n", btree.RowSize)
		fmt.Printf("LEAF_NODE_CELL_SIZE: %d\n", btree.LeafCellSize)
		fmt.Printf("LEAF_NODE_MAX_CELLS: %d\n", btree.LeafMaxCells)
		fmt.Printf("LEAF_NODE_MIN_CELLS: %d\n", btree.LeafMinCells)
		fmt.Printf("INTERNAL_NODE_MAX_KEYS: %d\n", btree.InternalMaxKeys)
		fmt.Printf("INTERNAL_NODE_MIN_KEYS: %d\n", btree.InternalMinKeys)

	case ".dot":
		if len(fields) != 2 {
			fmt.Println("syntax: .dot <file>")
			break
		}
		f, err := os.Create(fields[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		if err := tbl.ExportDOT(f); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		f.Close()
		fmt.Printf("Tree exported to %s (render with: dot -Tpng %s)\n", fields[1], fields[1])

	default:
		fmt.Printf("Unrecognized command: '%s'\n", line)
	}
	return false
}
