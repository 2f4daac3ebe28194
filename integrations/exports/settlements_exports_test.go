package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"contractorium/services/indexer"
)

func sampleSettlement(id uint64) indexer.Settlement {
	return indexer.Settlement{
		ClaimID:   id,
		Reporter:  "ctm1reporter",
		Program:   "ctm1program",
		Gross:     1000,
		Payout:    980,
		Revenue:   20,
		CutBps:    9800,
		Note:      "paid, thanks",
		Height:    7,
		TxHash:    "0xabc",
		SettledAt: time.Unix(1700, 0).UTC(),
	}
}

func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestSettlementsCSV(t *testing.T) {
	data, checksum, err := SettlementsCSV([]indexer.Settlement{sampleSettlement(1)})
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if checksum != checksumOf(data) {
		t.Fatalf("checksum mismatch")
	}
	output := string(data)
	if !strings.HasPrefix(output, "claim_id,reporter,program,gross,payout,revenue,cut_bps,height,tx_hash,settled_at,note\n") {
		t.Fatalf("missing header: %s", output)
	}
	if !strings.Contains(output, "1,ctm1reporter,ctm1program,1000,980,20,9800,7,0xabc,1970-01-01T00:28:20Z,\"paid, thanks\"") {
		t.Fatalf("unexpected row: %s", output)
	}
}

func TestSettlementsJSONL(t *testing.T) {
	data, checksum, err := SettlementsJSONL([]indexer.Settlement{sampleSettlement(1), sampleSettlement(2)})
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if checksum != checksumOf(data) {
		t.Fatalf("checksum mismatch")
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "\"claim_id\":2") || !strings.Contains(lines[1], "\"payout\":980") {
		t.Fatalf("unexpected payload: %s", lines[1])
	}
}

func TestSettlementsParquet(t *testing.T) {
	data, checksum, err := SettlementsParquet([]indexer.Settlement{sampleSettlement(1), sampleSettlement(2)})
	if err != nil {
		t.Fatalf("parquet: %v", err)
	}
	if checksum != checksumOf(data) {
		t.Fatalf("checksum mismatch")
	}
	magic := []byte("PAR1")
	if !bytes.HasPrefix(data, magic) || !bytes.HasSuffix(data, magic) {
		t.Fatalf("missing parquet magic")
	}
}

func TestEmptyExports(t *testing.T) {
	data, _, err := SettlementsCSV(nil)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if strings.Count(string(data), "\n") != 1 {
		t.Fatalf("expected header only, got %q", data)
	}
	data, _, err = SettlementsJSONL(nil)
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty jsonl")
	}
}
