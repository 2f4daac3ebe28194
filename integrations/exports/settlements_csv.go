// Package exports renders indexed settlements for accounting pipelines. Every
// export returns the serialised bytes alongside a SHA-256 checksum of them.
package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strconv"
	"time"

	"contractorium/services/indexer"
)

var csvHeader = []string{"claim_id", "reporter", "program", "gross", "payout", "revenue", "cut_bps", "height", "tx_hash", "settled_at", "note"}

// SettlementsCSV builds a CSV export for the supplied settlements.
func SettlementsCSV(rows []indexer.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, "", err
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatUint(row.ClaimID, 10),
			row.Reporter,
			row.Program,
			strconv.FormatUint(row.Gross, 10),
			strconv.FormatUint(row.Payout, 10),
			strconv.FormatUint(row.Revenue, 10),
			strconv.FormatUint(uint64(row.CutBps), 10),
			strconv.FormatUint(row.Height, 10),
			row.TxHash,
			formatTime(row.SettledAt),
			row.Note,
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	return withChecksum(buffer.Bytes())
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func withChecksum(data []byte) ([]byte, string, error) {
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
