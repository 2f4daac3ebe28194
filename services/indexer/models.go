package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRow mirrors one committed feed record. Height and Seq together are
// unique: heights never repeat across restarts and Seq orders events within
// a process lifetime.
type EventRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Height     uint64    `gorm:"not null;uniqueIndex:idx_event_position"`
	Seq        uint64    `gorm:"not null;uniqueIndex:idx_event_position"`
	TxHash     string    `gorm:"size:66;index"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// Settlement is the indexed copy of a settled claim. A claim settles once, so
// the claim id is the key.
type Settlement struct {
	ClaimID   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Reporter  string `gorm:"size:64;index"`
	Program   string `gorm:"size:64;index"`
	Gross     uint64 `gorm:"not null"`
	Payout    uint64 `gorm:"not null"`
	Revenue   uint64 `gorm:"not null"`
	CutBps    uint32 `gorm:"not null"`
	Note      string `gorm:"type:text"`
	Height    uint64 `gorm:"index"`
	TxHash    string `gorm:"size:66"`
	SettledAt time.Time
}

// Refund records a settlement attempt that returned the deposit.
type Refund struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClaimID   uint64    `gorm:"index"`
	Payer     string    `gorm:"size:64;index"`
	Amount    uint64    `gorm:"not null"`
	Reason    string    `gorm:"size:128"`
	Height    uint64
	TxHash    string `gorm:"size:66;uniqueIndex"`
	CreatedAt time.Time
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRow{}, &Settlement{}, &Refund{})
}
