package main

import (
	"fmt"
	"os"
	"strings"

	"contractorium/integrations/exports"
	"contractorium/rpc"
	"contractorium/services/indexer"
)

type exportResult struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Rows     int    `json:"rows"`
	Checksum string `json:"sha256"`
}

var exporters = map[string]func([]indexer.Settlement) ([]byte, string, error){
	"csv":     exports.SettlementsCSV,
	"jsonl":   exports.SettlementsJSONL,
	"parquet": exports.SettlementsParquet,
}

// runExport writes settlements either from an indexer database or, for a
// single program, straight from the node.
func (c *cli) runExport(args []string) int {
	fs := newFlagSet("export", c.stderr)
	out := fs.String("out", "", "destination file")
	format := fs.String("format", "parquet", "csv, jsonl or parquet")
	dsn := fs.String("dsn", "", "indexer database DSN")
	program := fs.String("program", "", "program owner address to export via RPC")
	limit := fs.Int("limit", 1000, "maximum rows read from the indexer")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "out") {
		return 2
	}
	render, ok := exporters[strings.ToLower(*format)]
	if !ok {
		fmt.Fprintf(c.stderr, "Error: unsupported format %q\n", *format)
		return 2
	}
	if (*dsn == "") == (*program == "") {
		fmt.Fprintln(c.stderr, "Error: exactly one of --dsn or --program is required")
		return 2
	}

	var (
		rows []indexer.Settlement
		err  error
	)
	if *dsn != "" {
		rows, err = settlementsFromIndexer(*dsn, *limit)
	} else {
		rows, err = c.settlementsFromNode(*program)
	}
	if err != nil {
		return c.fail(err)
	}
	data, checksum, err := render(rows)
	if err != nil {
		return c.fail(err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return c.fail(err)
	}
	return c.print(exportResult{Path: *out, Format: strings.ToLower(*format), Rows: len(rows), Checksum: checksum})
}

func settlementsFromIndexer(dsn string, limit int) ([]indexer.Settlement, error) {
	db, err := indexer.Open(dsn)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	idx, err := indexer.New(db)
	if err != nil {
		return nil, err
	}
	ctx, cancel := callContext()
	defer cancel()
	return idx.Settlements(ctx, indexer.Filter{Limit: limit})
}

// settlementsFromNode lists the program's settled claims and fetches the
// record of each. Height and tx hash are unknown on this path.
func (c *cli) settlementsFromNode(program string) ([]indexer.Settlement, error) {
	ctx, cancel := callContext()
	defer cancel()
	var claims []rpc.ClaimResult
	if err := c.client.Call(ctx, "bounty_listClaims", params{"program": program, "status": "settled"}, &claims); err != nil {
		return nil, err
	}
	rows := make([]indexer.Settlement, 0, len(claims))
	for _, claim := range claims {
		var rec rpc.SettlementResult
		if err := c.client.Call(ctx, "bounty_getSettlement", params{"claimId": claim.ID}, &rec); err != nil {
			return nil, fmt.Errorf("claim %d: %w", claim.ID, err)
		}
		rows = append(rows, indexer.Settlement{
			ClaimID:  rec.ClaimID,
			Reporter: rec.Reporter,
			Program:  rec.Program,
			Gross:    rec.Gross,
			Payout:   rec.Payout,
			Revenue:  rec.Revenue,
			CutBps:   rec.CutBps,
			Note:     rec.Note,
		})
	}
	return rows, nil
}
