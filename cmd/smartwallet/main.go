// Command smartwallet drives secp256r1 smart wallets from the terminal or
// serves the same operations over HTTP.
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/AlexZinkM/smart-wallet/internal/client"
	"github.com/AlexZinkM/smart-wallet/internal/config"
	"github.com/AlexZinkM/smart-wallet/internal/localnet"
	"github.com/AlexZinkM/smart-wallet/internal/logger"
	"github.com/AlexZinkM/smart-wallet/internal/storage"
	sw "github.com/AlexZinkM/smart-wallet/solana"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	LocalFlag = &cli.StringFlag{
		Name:  "local",
		Usage: "Run against a local cluster persisted in `DIR` instead of SOLANA_RPC_URL",
	}
	KeyFileFlag = &cli.StringFlag{
		Name:    "key",
		Usage:   "Path to the .cwt authority keystore",
		EnvVars: []string{"KEY_FILE_PATH"},
	}
	RPCFlag = &cli.StringFlag{
		Name:  "rpc",
		Usage: "Solana RPC endpoint (overrides SOLANA_RPC_URL)",
	}
	WalletIDFlag = &cli.Uint64Flag{
		Name:     "id",
		Usage:    "Smart wallet id",
		Required: true,
	}
)

//go:generate swag init --dir ../.. --generalInfo cmd/smartwallet/main.go --output ../../docs --outputTypes go

// localAirdrop is what the payer is topped up to on a local cluster.
const localAirdrop = 100 * solana.LAMPORTS_PER_SOL

// @title        Smart Wallet API
// @version      1.0
// @description  secp256r1 smart wallet client
// @BasePath     /
func main() {
	app := &cli.App{
		Name:  "smartwallet",
		Usage: "secp256r1 smart wallet client",
		Flags: []cli.Flag{LocalFlag, KeyFileFlag, RPCFlag},
		Commands: []*cli.Command{
			serveCommand,
			keygenCommand,
			passwdCommand,
			initCommand,
			infoCommand,
			listCommand,
			messageCommand,
			memoCommand,
			transferCommand,
			addAuthorityCommand,
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command runs with.
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	svc   *sw.Service
	store *storage.Store
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
	e.log.Sync()
}

func setup(ctx *cli.Context) (*env, error) {
	if err := config.Init(); err != nil {
		return nil, err
	}
	cfg := config.Get()
	if ctx.IsSet(KeyFileFlag.Name) {
		cfg.KeyFilePath = ctx.String(KeyFileFlag.Name)
	}
	if ctx.IsSet(RPCFlag.Name) {
		cfg.SolanaRPCURL = ctx.String(RPCFlag.Name)
	}
	config.Set(cfg)
	if config.GetKeyFilePath() == "" {
		return nil, errors.New("KEY_FILE_PATH not set (use --key)")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log}

	programCfg := config.GetProgramConfig()
	var c *client.SolanaClient
	var payer solana.PrivateKey

	if dir := ctx.String(LocalFlag.Name); dir != "" {
		e.store, err = storage.Open(dir)
		if err != nil {
			e.Close()
			return nil, err
		}
		cluster := localnet.New(e.store, programCfg, log)
		payer, err = localPayer(config.GetPayerKeyPath())
		if err != nil {
			e.Close()
			return nil, err
		}
		if err := topUp(e.store, cluster, payer.PublicKey()); err != nil {
			e.Close()
			return nil, err
		}
		c = client.NewWithRPC(cluster, programCfg, config.GetComputeUnitLimit(), log)
		log.Info("using local cluster", zap.String("dir", dir), zap.Stringer("payer", payer.PublicKey()))
	} else {
		payer, err = solana.PrivateKeyFromSolanaKeygenFile(config.GetPayerKeyPath())
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to load fee payer %s: %w", config.GetPayerKeyPath(), err)
		}
		c = client.NewSolanaClient(config.GetSolanaRPCURL(), programCfg, config.GetComputeUnitLimit(), log)
	}

	e.svc = sw.NewService(c, config.GetKeyFilePath(), payer)
	return e, nil
}

// localPayer loads the fee payer keypair, or makes a throwaway one when
// there is none on disk.
func localPayer(path string) (solana.PrivateKey, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return solana.NewWallet().PrivateKey, nil
	}
	return solana.PrivateKeyFromSolanaKeygenFile(path)
}

func topUp(store *storage.Store, cluster *localnet.Cluster, payer solana.PublicKey) error {
	acct, err := store.Account(payer)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return cluster.Airdrop(payer, localAirdrop)
	}
	if err != nil {
		return err
	}
	if acct.Lamports < localAirdrop {
		return cluster.Airdrop(payer, localAirdrop-acct.Lamports)
	}
	return nil
}
