package main

import (
	"flag"
	"fmt"

	"contractorium/core/types"
	"contractorium/crypto"
	"contractorium/rpc"
)

// submit signs a transaction of txType with the keystore key, filling chain
// id and nonce from the node, and prints the receipt.
func (c *cli) submit(keystore string, txType types.TxType, payload interface{}, mutate func(*types.Transaction)) int {
	key, err := c.loadKey(keystore)
	if err != nil {
		return c.fail(err)
	}
	ctx, cancel := callContext()
	defer cancel()
	status, err := c.client.Status(ctx)
	if err != nil {
		return c.fail(err)
	}
	nonce, err := c.client.Nonce(ctx, key.PubKey().Address().String())
	if err != nil {
		return c.fail(err)
	}
	tx := &types.Transaction{ChainID: status.ChainID, Type: txType, Nonce: nonce}
	if err := tx.SetPayload(payload); err != nil {
		return c.fail(err)
	}
	if mutate != nil {
		mutate(tx)
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return c.fail(err)
	}
	receipt, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return c.fail(err)
	}
	return c.print(receipt)
}

func parseTarget(value string) ([]byte, error) {
	raw, err := crypto.ParseIdentity(value)
	if err != nil {
		return nil, err
	}
	return raw[:], nil
}

func keystoreFlag(fs *flag.FlagSet) *string {
	return fs.String("keystore", "", "signing keystore file")
}

func (c *cli) runTransfer(args []string) int {
	fs := newFlagSet("transfer", c.stderr)
	keystore := keystoreFlag(fs)
	to := fs.String("to", "", "recipient address")
	amount := fs.Uint64("amount", 0, "amount to transfer")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "keystore", "to") {
		return 2
	}
	target, err := parseTarget(*to)
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keystore, types.TxTypeTransfer, nil, func(tx *types.Transaction) {
		tx.To = target
		tx.Value = *amount
	})
}

func (c *cli) runProgram(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, "Usage: program <get|create|edit|delete|verify|remove> [flags]")
		return 2
	}
	switch args[0] {
	case "get":
		return c.runProgramGet(args[1:])
	case "create":
		return c.runProgramWrite("program create", types.TxTypeCreateProgram, args[1:])
	case "edit":
		return c.runProgramWrite("program edit", types.TxTypeEditProgram, args[1:])
	case "delete":
		fs := newFlagSet("program delete", c.stderr)
		keystore := keystoreFlag(fs)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if c.missing(fs, "keystore") {
			return 2
		}
		return c.submit(*keystore, types.TxTypeDeleteProgram, nil, nil)
	case "verify":
		return c.runTargeted("program verify", types.TxTypeVerifyProgram, args[1:])
	case "remove":
		return c.runTargeted("program remove", types.TxTypeDeleteProgramAdmin, args[1:])
	default:
		fmt.Fprintf(c.stderr, "Unknown program subcommand: %s\n", args[0])
		return 2
	}
}

func (c *cli) runProgramWrite(name string, txType types.TxType, args []string) int {
	fs := newFlagSet(name, c.stderr)
	keystore := keystoreFlag(fs)
	var payload types.ProgramPayload
	fs.StringVar(&payload.Name, "name", "", "program name")
	fs.StringVar(&payload.Description, "description", "", "program description")
	fs.StringVar(&payload.Image, "image", "", "optional image URL")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "keystore", "name", "description") {
		return 2
	}
	return c.submit(*keystore, txType, payload, nil)
}

// runTargeted handles the operations whose payload is a single identity.
func (c *cli) runTargeted(name string, txType types.TxType, args []string) int {
	fs := newFlagSet(name, c.stderr)
	keystore := keystoreFlag(fs)
	flagName := "target"
	if txType == types.TxTypeResignManager {
		flagName = "manager"
	}
	target := fs.String(flagName, "", "target address")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "keystore", flagName) {
		return 2
	}
	raw, err := parseTarget(*target)
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keystore, txType, types.TargetPayload{Target: raw}, nil)
}

func (c *cli) runReport(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, "Usage: report <get|list|create|pay|delete|remove> [flags]")
		return 2
	}
	switch args[0] {
	case "get":
		return c.runReportGet(args[1:])
	case "list":
		return c.runReportList(args[1:])
	case "create":
		fs := newFlagSet("report create", c.stderr)
		keystore := keystoreFlag(fs)
		program := fs.String("program", "", "program owner address")
		title := fs.String("title", "", "report title")
		description := fs.String("description", "", "report description")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if c.missing(fs, "keystore", "program", "description") {
			return 2
		}
		to, err := parseTarget(*program)
		if err != nil {
			return c.fail(err)
		}
		return c.submit(*keystore, types.TxTypeCreateReport, types.CreateReportPayload{To: to, Title: *title, Description: *description}, nil)
	case "pay":
		return c.runReportPay(args[1:])
	case "delete":
		return c.runClaimOp("report delete", types.TxTypeDeleteReport, args[1:])
	case "remove":
		return c.runClaimOp("report remove", types.TxTypeDeleteReportAdmin, args[1:])
	default:
		fmt.Fprintf(c.stderr, "Unknown report subcommand: %s\n", args[0])
		return 2
	}
}

func (c *cli) runClaimOp(name string, txType types.TxType, args []string) int {
	fs := newFlagSet(name, c.stderr)
	keystore := keystoreFlag(fs)
	id := fs.Uint64("id", 0, "claim id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "keystore") {
		return 2
	}
	if *id == 0 {
		fmt.Fprintln(c.stderr, "Error: --id is required")
		return 2
	}
	return c.submit(*keystore, txType, types.ClaimPayload{ClaimID: *id}, nil)
}

// runReportPay settles a claim. The payment is drawn from the signer and, by
// default, deposited with the platform contract reported by the node.
func (c *cli) runReportPay(args []string) int {
	fs := newFlagSet("report pay", c.stderr)
	keystore := keystoreFlag(fs)
	id := fs.Uint64("id", 0, "claim id")
	amount := fs.Uint64("amount", 0, "gross payment")
	note := fs.String("note", "", "settlement note")
	receiver := fs.String("receiver", "", "payment receiver (defaults to the platform contract)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "keystore", "note") {
		return 2
	}
	if *id == 0 {
		fmt.Fprintln(c.stderr, "Error: --id is required")
		return 2
	}
	key, err := c.loadKey(*keystore)
	if err != nil {
		return c.fail(err)
	}
	to := *receiver
	if to == "" {
		ctx, cancel := callContext()
		var cfg rpc.ConfigResult
		err := c.client.Call(ctx, "bounty_getConfig", nil, &cfg)
		cancel()
		if err != nil {
			return c.fail(err)
		}
		to = cfg.Contract
	}
	receiverRaw, err := parseTarget(to)
	if err != nil {
		return c.fail(err)
	}
	sender := key.PubKey().Address().Raw()
	return c.submit(*keystore, types.TxTypeCloseAndPayReport, types.CloseAndPayPayload{
		ClaimID: *id,
		Note:    *note,
		Payment: types.PaymentPayload{Sender: sender[:], Receiver: receiverRaw, Amount: *amount},
	}, nil)
}

func (c *cli) runAdmin(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, "Usage: admin <resign|set-cut|payday> [flags]")
		return 2
	}
	switch args[0] {
	case "resign":
		return c.runTargeted("admin resign", types.TxTypeResignManager, args[1:])
	case "set-cut":
		fs := newFlagSet("admin set-cut", c.stderr)
		keystore := keystoreFlag(fs)
		bps := fs.Uint("bps", 0, "finder share in basis points")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if c.missing(fs, "keystore") {
			return 2
		}
		return c.submit(*keystore, types.TxTypeSetCut, types.SetCutPayload{CutBps: uint32(*bps)}, nil)
	case "payday":
		fs := newFlagSet("admin payday", c.stderr)
		keystore := keystoreFlag(fs)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if c.missing(fs, "keystore") {
			return 2
		}
		return c.submit(*keystore, types.TxTypePayday, nil, nil)
	default:
		fmt.Fprintf(c.stderr, "Unknown admin subcommand: %s\n", args[0])
		return 2
	}
}
