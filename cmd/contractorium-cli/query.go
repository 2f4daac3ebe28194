package main

import (
	"fmt"

	"contractorium/core/events"
	"contractorium/core/types"
	"contractorium/rpc"
)

type params map[string]interface{}

// query calls method and prints the decoded result.
func (c *cli) query(method string, param interface{}, out interface{}) int {
	ctx, cancel := callContext()
	defer cancel()
	if err := c.client.Call(ctx, method, param, out); err != nil {
		return c.fail(err)
	}
	return c.print(out)
}

func (c *cli) runStatus(args []string) int {
	fs := newFlagSet("status", c.stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return c.query("bounty_getStatus", nil, &rpc.StatusResult{})
}

func (c *cli) runConfig(args []string) int {
	fs := newFlagSet("config", c.stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return c.query("bounty_getConfig", nil, &rpc.ConfigResult{})
}

func (c *cli) runBalance(args []string) int {
	fs := newFlagSet("balance", c.stderr)
	address := fs.String("address", "", "account address")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "address") {
		return 2
	}
	return c.query("bounty_getBalance", params{"address": *address}, &rpc.BalanceResult{})
}

func (c *cli) runProgramGet(args []string) int {
	fs := newFlagSet("program get", c.stderr)
	owner := fs.String("owner", "", "program owner address")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "owner") {
		return 2
	}
	return c.query("bounty_getProgram", params{"address": *owner}, &rpc.ProgramResult{})
}

func (c *cli) runReportGet(args []string) int {
	fs := newFlagSet("report get", c.stderr)
	id := fs.Uint64("id", 0, "claim id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return c.query("bounty_getClaim", params{"claimId": *id}, &rpc.ClaimResult{})
}

func (c *cli) runReportList(args []string) int {
	fs := newFlagSet("report list", c.stderr)
	program := fs.String("program", "", "program owner address")
	reporter := fs.String("reporter", "", "reporter address")
	status := fs.String("status", "", "only claims in this status (open, settled, destroyed)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (*program == "") == (*reporter == "") {
		fmt.Fprintln(c.stderr, "Error: exactly one of --program or --reporter is required")
		return 2
	}
	p := params{}
	if *program != "" {
		p["program"] = *program
	} else {
		p["reporter"] = *reporter
	}
	if *status != "" {
		p["status"] = *status
	}
	var out []rpc.ClaimResult
	return c.query("bounty_listClaims", p, &out)
}

func (c *cli) runSettlement(args []string) int {
	if len(args) == 0 || args[0] != "get" {
		fmt.Fprintln(c.stderr, "Usage: settlement get --id N")
		return 2
	}
	fs := newFlagSet("settlement get", c.stderr)
	id := fs.Uint64("id", 0, "claim id")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	return c.query("bounty_getSettlement", params{"claimId": *id}, &rpc.SettlementResult{})
}

func (c *cli) runPreviewCut(args []string) int {
	fs := newFlagSet("preview-cut", c.stderr)
	amount := fs.Uint64("amount", 0, "gross amount")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return c.query("bounty_previewCut", params{"amount": *amount}, &rpc.PreviewCutResult{})
}

func (c *cli) runReceipt(args []string) int {
	fs := newFlagSet("receipt", c.stderr)
	hash := fs.String("tx", "", "transaction hash")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "tx") {
		return 2
	}
	return c.query("bounty_getReceipt", params{"txHash": *hash}, &types.Receipt{})
}

func (c *cli) runEvents(args []string) int {
	fs := newFlagSet("events", c.stderr)
	after := fs.Uint64("after", 0, "return events with a greater sequence number")
	limit := fs.Int("limit", 100, "maximum number of events")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	var out []events.Record
	return c.query("bounty_listEvents", params{"after": *after, "limit": *limit}, &out)
}
