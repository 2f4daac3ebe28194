package bounty

import (
	"strconv"

	"contractorium/core/types"
	"contractorium/crypto"
)

const (
	EventTypeConfigInitialized = "bounty.config.initialized"
	EventTypeProgramCreated    = "bounty.program.created"
	EventTypeProgramEdited     = "bounty.program.edited"
	EventTypeProgramVerified   = "bounty.program.verified"
	EventTypeProgramDeleted    = "bounty.program.deleted"
	EventTypeReportCreated     = "bounty.report.created"
	EventTypeReportSettled     = "bounty.report.settled"
	EventTypeReportRefunded    = "bounty.report.refunded"
	EventTypeReportDeleted     = "bounty.report.deleted"
	EventTypeManagerChanged    = "bounty.manager.changed"
	EventTypeCutUpdated        = "bounty.cut.updated"
	EventTypePayday            = "bounty.payday"
)

// bountyEvent adapts a wire event to the events.Emitter interface.
type bountyEvent struct {
	evt *types.Event
}

func (e bountyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bountyEvent) Event() *types.Event { return e.evt }

func addr(a [20]byte) string {
	return crypto.AddressFromRaw(a).String()
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func newProgramEvent(kind string, p *Program, actor [20]byte) *types.Event {
	attrs := map[string]string{
		"owner":    addr(p.Owner),
		"actor":    addr(actor),
		"verified": strconv.FormatBool(p.Verified),
	}
	if kind != EventTypeProgramDeleted {
		attrs["name"] = p.Name
	}
	return &types.Event{Type: kind, Attributes: attrs}
}

// NewProgramDeletedEvent reports a removed program. Admin deletions carry the
// manager as actor.
func NewProgramDeletedEvent(owner, actor [20]byte) *types.Event {
	return newProgramEvent(EventTypeProgramDeleted, &Program{Owner: owner}, actor)
}

func NewReportCreatedEvent(c *ClaimToken) *types.Event {
	return &types.Event{Type: EventTypeReportCreated, Attributes: map[string]string{
		"claimId":  u64(c.ID),
		"reporter": addr(c.Reporter),
		"program":  addr(c.Program),
		"title":    c.Title,
	}}
}

func NewReportSettledEvent(rec *SettlementRecord) *types.Event {
	return &types.Event{Type: EventTypeReportSettled, Attributes: map[string]string{
		"claimId":  u64(rec.ClaimID),
		"reporter": addr(rec.Reporter),
		"program":  addr(rec.Program),
		"gross":    u64(rec.Gross),
		"payout":   u64(rec.Payout),
		"revenue":  u64(rec.Revenue),
		"cutBps":   strconv.FormatUint(uint64(rec.CutBps), 10),
		"note":     rec.Note,
	}}
}

func NewReportRefundedEvent(claimID uint64, payer [20]byte, amount uint64, reason error) *types.Event {
	attrs := map[string]string{
		"claimId": u64(claimID),
		"payer":   addr(payer),
		"amount":  u64(amount),
	}
	if reason != nil {
		attrs["reason"] = reason.Error()
	}
	return &types.Event{Type: EventTypeReportRefunded, Attributes: attrs}
}

func NewReportDeletedEvent(c *ClaimToken, actor [20]byte) *types.Event {
	return &types.Event{Type: EventTypeReportDeleted, Attributes: map[string]string{
		"claimId":  u64(c.ID),
		"reporter": addr(c.Reporter),
		"program":  addr(c.Program),
		"actor":    addr(actor),
	}}
}

func NewConfigInitializedEvent(cfg Config) *types.Event {
	return &types.Event{Type: EventTypeConfigInitialized, Attributes: map[string]string{
		"manager":  addr(cfg.Manager),
		"deployer": addr(cfg.Deployer),
		"contract": addr(cfg.Contract),
		"cutBps":   strconv.FormatUint(uint64(cfg.CutBps), 10),
	}}
}

func NewManagerChangedEvent(previous, next [20]byte) *types.Event {
	return &types.Event{Type: EventTypeManagerChanged, Attributes: map[string]string{
		"previous": addr(previous),
		"manager":  addr(next),
	}}
}

func NewCutUpdatedEvent(previous, next uint32) *types.Event {
	return &types.Event{Type: EventTypeCutUpdated, Attributes: map[string]string{
		"previous": strconv.FormatUint(uint64(previous), 10),
		"cutBps":   strconv.FormatUint(uint64(next), 10),
	}}
}

func NewPaydayEvent(to [20]byte, amount, balance uint64) *types.Event {
	return &types.Event{Type: EventTypePayday, Attributes: map[string]string{
		"to":      addr(to),
		"amount":  u64(amount),
		"balance": u64(balance),
		"note":    PaydayNote,
	}}
}
