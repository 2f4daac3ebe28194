package bounty

import (
	"encoding/hex"
	"strconv"
)

var (
	configKey   = []byte("bounty/config")
	claimSeqKey = []byte("bounty/claim-seq")
)

// ConfigStorageKey returns the key of the platform config singleton.
func ConfigStorageKey() []byte { return append([]byte(nil), configKey...) }

// ClaimSequenceKey returns the key holding the next claim id.
func ClaimSequenceKey() []byte { return append([]byte(nil), claimSeqKey...) }

func ProgramStorageKey(owner [20]byte) []byte {
	return []byte("bounty/program/" + hex.EncodeToString(owner[:]))
}

func ClaimStorageKey(id uint64) []byte {
	return []byte("bounty/claim/" + strconv.FormatUint(id, 10))
}

// ClaimHoldingKey addresses the units of claim id held by holder.
func ClaimHoldingKey(holder [20]byte, id uint64) []byte {
	return []byte("bounty/holding/" + hex.EncodeToString(holder[:]) + "/" + strconv.FormatUint(id, 10))
}

func SettlementStorageKey(id uint64) []byte {
	return []byte("bounty/settlement/" + strconv.FormatUint(id, 10))
}

// ProgramClaimsIndexKey lists claim ids filed against a program owner.
func ProgramClaimsIndexKey(owner [20]byte) []byte {
	return []byte("bounty/index/program/" + hex.EncodeToString(owner[:]))
}

// ReporterClaimsIndexKey lists claim ids filed by a reporter.
func ReporterClaimsIndexKey(reporter [20]byte) []byte {
	return []byte("bounty/index/reporter/" + hex.EncodeToString(reporter[:]))
}
