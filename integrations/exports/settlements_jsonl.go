package exports

import (
	"bytes"
	"encoding/json"

	"contractorium/services/indexer"
)

type jsonlRow struct {
	ClaimID   uint64 `json:"claim_id"`
	Reporter  string `json:"reporter"`
	Program   string `json:"program"`
	Gross     uint64 `json:"gross"`
	Payout    uint64 `json:"payout"`
	Revenue   uint64 `json:"revenue"`
	CutBps    uint32 `json:"cut_bps"`
	Height    uint64 `json:"height"`
	TxHash    string `json:"tx_hash"`
	SettledAt string `json:"settled_at,omitempty"`
	Note      string `json:"note"`
}

// SettlementsJSONL builds a JSON Lines export for the supplied settlements.
func SettlementsJSONL(rows []indexer.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range rows {
		if err := encoder.Encode(jsonlRow{
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
		}); err != nil {
			return nil, "", err
		}
	}
	return withChecksum(buffer.Bytes())
}
