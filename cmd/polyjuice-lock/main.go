// polyjuice-lock validates transfer authorizations outside the chain:
// it rebuilds a ledger transaction from a JSON fixture, runs the lock
// over it and reports the verdict through its exit code, optionally
// recording the resulting account state in a local index.
package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/nervosnetwork/polyjuice-old/common"
	"github.com/nervosnetwork/polyjuice-old/common/hexutil"
	"github.com/nervosnetwork/polyjuice-old/lock"
	"github.com/nervosnetwork/polyjuice-old/params"
	"github.com/nervosnetwork/polyjuice-old/store"
	"github.com/nervosnetwork/polyjuice-old/types"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

var (
	txFlag = &cli.StringFlag{
		Name:     "tx",
		Usage:    "path to the ledger transaction fixture (JSON)",
		Required: true,
	}
	addressFlag = &cli.StringFlag{
		Name:     "address",
		Usage:    "expected sender address (0x-prefixed, 20 bytes)",
		Required: true,
	}
	statedirFlag = &cli.StringFlag{
		Name:  "statedir",
		Usage: "directory of the account index",
	}
)

func main() {
	app := &cli.App{
		Name:  "polyjuice-lock",
		Usage: "validate transfer authorizations against ledger transactions",
		Commands: []*cli.Command{
			{
				Name:   "verify",
				Usage:  "run the lock over a transaction fixture",
				Flags:  []cli.Flag{txFlag, addressFlag, statedirFlag},
				Action: verify,
			},
			{
				Name:   "account",
				Usage:  "print the indexed state of an address",
				Flags:  []cli.Flag{addressFlag, statedirFlag},
				Action: account,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		if _, ok := err.(cli.ExitCoder); !ok {
			log.Error().Err(err).Msg("exiting")
			os.Exit(1)
		}
		cli.HandleExitCoder(err)
	}
}

// fixtureCell mirrors one cell of the candidate transaction.
type fixtureCell struct {
	LockHash common.Hash    `json:"lock_hash"`
	Data     hexutil.Bytes  `json:"data"`
	Capacity hexutil.Uint64 `json:"capacity"`
}

// fixture is the JSON form of a candidate ledger transaction.
type fixture struct {
	Inputs     []fixtureCell     `json:"inputs"`
	Outputs    []fixtureCell     `json:"outputs"`
	Witnesses  [][]hexutil.Bytes `json:"witnesses"`
	ScriptArgs []hexutil.Bytes   `json:"script_args"`
	ScriptHash common.Hash       `json:"script_hash"`
	TxHash     common.Hash       `json:"tx_hash"`
}

func (f *fixture) ledger() *lock.MemLedger {
	m := &lock.MemLedger{
		Script: f.ScriptHash,
		Hash:   f.TxHash,
	}
	for _, c := range f.Inputs {
		m.Inputs = append(m.Inputs, lock.Cell{LockHash: c.LockHash, Data: c.Data, Capacity: uint64(c.Capacity)})
	}
	for _, c := range f.Outputs {
		m.Outputs = append(m.Outputs, lock.Cell{LockHash: c.LockHash, Data: c.Data, Capacity: uint64(c.Capacity)})
	}
	for _, w := range f.Witnesses {
		elems := make([][]byte, len(w))
		for i, e := range w {
			elems[i] = e
		}
		m.Witnesses = append(m.Witnesses, elems)
	}
	for _, a := range f.ScriptArgs {
		m.Args = append(m.Args, a)
	}
	return m
}

func verify(ctx *cli.Context) error {
	var expected common.Address
	if err := expected.UnmarshalText([]byte(ctx.String(addressFlag.Name))); err != nil {
		return cli.Exit(fmt.Sprintf("invalid address: %v", err), lock.ErrArguments.Code())
	}
	f, err := loadFixture(ctx.String(txFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), lock.ErrArguments.Code())
	}
	ledger := f.ledger()

	verr := lock.NewValidator(ledger, expected).Verify()
	code := lock.VerdictCode(verr)
	if code != 0 {
		log.Info().Int("code", code).Err(verr).Str("address", expected.Hex()).Msg("rejected")
		return cli.Exit("", code)
	}
	log.Info().Str("address", expected.Hex()).Msg("authorized")
	logTransaction(ledger)

	if dir := ctx.String(statedirFlag.Name); dir != "" {
		if err := recordState(dir, expected, ledger); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	return nil
}

// logTransaction decodes the embedded transaction of a standard-path
// witness for reporting. Bypass witnesses carry no transaction.
func logTransaction(ledger *lock.MemLedger) {
	if len(ledger.Witnesses) == 0 || len(ledger.Witnesses[0]) != 1 {
		return
	}
	raw := ledger.Witnesses[0][0]
	if len(raw) == 0 || raw[0] == params.BypassSentinel {
		return
	}
	tx, err := types.DecodeRaw(raw)
	if err != nil {
		return
	}
	ev := log.Info().
		Str("from", tx.From().Hex()).
		Uint64("nonce", tx.Nonce).
		Str("value", tx.Value.Dec()).
		Str("gasPrice", tx.GasPrice.Dec()).
		Str("gasLimit", tx.GasLimit.Dec())
	if tx.To != nil {
		ev = ev.Str("to", tx.To.Hex())
	}
	ev.Msg("transaction")
}

// recordState indexes the account state produced by an authorized
// transition: the nonce and capacity of the new main cell.
func recordState(dir string, addr common.Address, ledger *lock.MemLedger) error {
	if len(ledger.Outputs) == 0 || len(ledger.Outputs[0].Data) < params.MainCellDataSize {
		// Bypass-mode transitions leave no main cell to index.
		return nil
	}
	s, err := store.Open(dir)
	if err != nil {
		return err
	}
	defer s.Close()

	main := ledger.Outputs[0]
	nonce := binary.LittleEndian.Uint64(main.Data[1:9])
	if err := s.PutAccount(addr, store.Account{Nonce: nonce, Capacity: main.Capacity}); err != nil {
		return err
	}
	log.Info().Uint64("nonce", nonce).Uint64("capacity", main.Capacity).Msg("account indexed")
	return nil
}

func account(ctx *cli.Context) error {
	var addr common.Address
	if err := addr.UnmarshalText([]byte(ctx.String(addressFlag.Name))); err != nil {
		return cli.Exit(fmt.Sprintf("invalid address: %v", err), lock.ErrArguments.Code())
	}
	s, err := store.Open(ctx.String(statedirFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer s.Close()

	acct, err := s.Account(addr)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("address: %s\nnonce: %d\ncapacity: %d\n", addr.Hex(), acct.Nonce, acct.Capacity)
	return nil
}

func loadFixture(path string) (*fixture, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read fixture: %w", err)
	}
	var f fixture
	if err := json.Unmarshal(blob, &f); err != nil {
		return nil, fmt.Errorf("cannot parse fixture: %w", err)
	}
	return &f, nil
}
