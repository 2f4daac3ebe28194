package exports

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"contractorium/services/indexer"
)

type parquetRow struct {
	ClaimID   uint64 `parquet:"name=claim_id, type=INT64, convertedtype=UINT_64"`
	Reporter  string `parquet:"name=reporter, type=BYTE_ARRAY, convertedtype=UTF8"`
	Program   string `parquet:"name=program, type=BYTE_ARRAY, convertedtype=UTF8"`
	Gross     uint64 `parquet:"name=gross, type=INT64, convertedtype=UINT_64"`
	Payout    uint64 `parquet:"name=payout, type=INT64, convertedtype=UINT_64"`
	Revenue   uint64 `parquet:"name=revenue, type=INT64, convertedtype=UINT_64"`
	CutBps    uint32 `parquet:"name=cut_bps, type=INT32, convertedtype=UINT_32"`
	Height    uint64 `parquet:"name=height, type=INT64, convertedtype=UINT_64"`
	TxHash    string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	SettledAt string `parquet:"name=settled_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	Note      string `parquet:"name=note, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// SettlementsParquet builds a SNAPPY-compressed Parquet export for the
// supplied settlements.
func SettlementsParquet(rows []indexer.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	fw := writerfile.NewWriterFile(buffer)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &parquetRow{
			ClaimID:   row.ClaimID,
			Reporter:  row.Reporter,
			Program:   row.Program,
			Gross:     row.Gross,
			Payout:    row.Payout,
			Revenue:   row.Revenue,
			CutBps:    row.CutBps,
			Height:    row.Height,
			TxHash:    row.TxHash,
			SettledAt: formatTime(row.SettledAt),
			Note:      row.Note,
		}
		if err := pw.Write(pr); err != nil {
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	return withChecksum(buffer.Bytes())
}
