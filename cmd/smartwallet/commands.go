package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexZinkM/smart-wallet/internal/api"
	"github.com/AlexZinkM/smart-wallet/internal/config"
	"github.com/AlexZinkM/smart-wallet/internal/crypto"
	"github.com/AlexZinkM/smart-wallet/internal/handler"
	"github.com/AlexZinkM/smart-wallet/internal/model"
	sw "github.com/AlexZinkM/smart-wallet/solana"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	serveCommand = &cli.Command{
		Name:   "serve",
		Usage:  "Serve the HTTP API on PORT",
		Action: serve,
	}
	keygenCommand = &cli.Command{
		Name:   "keygen",
		Usage:  "Generate a secp256r1 authority key into the keystore",
		Action: keygen,
	}
	passwdCommand = &cli.Command{
		Name:   "passwd",
		Usage:  "Re-encrypt the keystore under a new password",
		Action: passwd,
	}
	initCommand = &cli.Command{
		Name:   "init",
		Usage:  "Create a smart wallet owned by the keystore key",
		Flags:  []cli.Flag{WalletIDFlag},
		Action: initWallet,
	}
	infoCommand = &cli.Command{
		Name:   "info",
		Usage:  "Show a smart wallet",
		Flags:  []cli.Flag{WalletIDFlag},
		Action: info,
	}
	listCommand = &cli.Command{
		Name:  "list",
		Usage: "List smart wallets created by a key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "creator", Usage: "Compressed public key (default: keystore key)"},
		},
		Action: list,
	}
	messageCommand = &cli.Command{
		Name:   "message",
		Usage:  "Show the message the next authorization signs",
		Flags:  []cli.Flag{WalletIDFlag},
		Action: message,
	}
	memoCommand = &cli.Command{
		Name:      "memo",
		Usage:     "Record a memo signed by the wallet",
		ArgsUsage: "<text>",
		Description: "Without --signature the keystore key authorizes the memo. With it, the memo\n" +
			"carries an authorization made by an external P-256 signer over the\n" +
			"bytes printed by `message`.",
		Flags: []cli.Flag{
			WalletIDFlag,
			&cli.StringFlag{Name: "pubkey", Usage: "Compressed public key of the external signer"},
			&cli.StringFlag{Name: "message", Usage: "Signed message bytes, hex"},
			&cli.StringFlag{Name: "signature", Usage: "External r||s signature, hex or base64"},
		},
		Action: memo,
	}
	transferCommand = &cli.Command{
		Name:  "transfer",
		Usage: "Send SPL tokens from the wallet",
		Flags: []cli.Flag{
			WalletIDFlag,
			&cli.StringFlag{Name: "mint", Usage: "Token mint", Required: true},
			&cli.StringFlag{Name: "to", Usage: "Recipient wallet address", Required: true},
			&cli.StringFlag{Name: "amount", Usage: "Amount in tokens, e.g. 1.5", Required: true},
			&cli.UintFlag{Name: "decimals", Usage: "Mint decimals", Value: 6},
		},
		Action: transfer,
	}
	addAuthorityCommand = &cli.Command{
		Name:      "add-authority",
		Usage:     "Allow more keys to authorize the wallet",
		ArgsUsage: "<pubkey>...",
		Flags:     []cli.Flag{WalletIDFlag},
		Action:    addAuthority,
	}
)

func serve(ctx *cli.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	// Prompt for password in terminal (hidden input)
	if err := config.PromptForPassword(); err != nil {
		return err
	}

	h, err := handler.NewSmartWalletHandler(e.svc, config.GetPasswordBytes, e.log)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + config.GetPort(),
		Handler:           api.SetupRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	e.log.Info("server listening", zap.String("addr", srv.Addr), zap.String("swagger", "/swagger/index.html"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func keygen(ctx *cli.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	password, err := readPassword("New keystore password: ")
	if err != nil {
		return err
	}
	defer clear(password)
	confirm, err := readPassword("Repeat password: ")
	if err != nil {
		return err
	}
	defer clear(confirm)
	if string(password) != string(confirm) {
		return errors.New("passwords do not match")
	}

	pubkey, err := sw.GenerateKey(e.svc.FilePath(), password)
	if err != nil {
		return err
	}
	return printJSON(model.GenerateResponse{Success: true, Message: "Key generated successfully", Pubkey: pubkey})
}

func passwd(ctx *cli.Context) error {
	if err := config.Init(); err != nil {
		return err
	}
	path := config.GetKeyFilePath()
	if ctx.IsSet(KeyFileFlag.Name) {
		path = ctx.String(KeyFileFlag.Name)
	}
	if path == "" {
		return errors.New("KEY_FILE_PATH not set (use --key)")
	}

	oldPassword, err := readPassword("Current password: ")
	if err != nil {
		return err
	}
	defer clear(oldPassword)
	newPassword, err := readPassword("New password: ")
	if err != nil {
		return err
	}
	defer clear(newPassword)

	if err := crypto.ChangePassword(path, oldPassword, newPassword); err != nil {
		return err
	}
	fmt.Println("Password changed")
	return nil
}

func initWallet(ctx *cli.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.svc.InitWallet(ctx.Context, ctx.Uint64(WalletIDFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func info(ctx *cli.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.svc.WalletInfo(ctx.Context, ctx.Uint64(WalletIDFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func list(ctx *cli.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.svc.WalletsByCreator(ctx.Context, ctx.String("creator"))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func message(ctx *cli.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.svc.Message(ctx.Context, ctx.Uint64(WalletIDFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func memo(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowSubcommandHelp(ctx)
	}
	if ctx.IsSet("signature") {
		return memoSigned(ctx)
	}
	return withPassword(ctx, func(e *env, password []byte) (any, error) {
		return e.svc.Memo(ctx.Context, password, ctx.Uint64(WalletIDFlag.Name), ctx.Args().First())
	})
}

func memoSigned(ctx *cli.Context) error {
	req := model.SignedMemoRequest{
		WalletID:  ctx.Uint64(WalletIDFlag.Name),
		Text:      ctx.Args().First(),
		Pubkey:    ctx.String("pubkey"),
		Message:   ctx.String("message"),
		Signature: ctx.String("signature"),
	}
	if req.Pubkey == "" || req.Message == "" {
		return errors.New("--signature needs --pubkey and --message")
	}

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.svc.MemoSigned(ctx.Context, req)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func transfer(ctx *cli.Context) error {
	req := model.TransferRequest{
		WalletID:  ctx.Uint64(WalletIDFlag.Name),
		Mint:      ctx.String("mint"),
		ToAddress: ctx.String("to"),
		Amount:    ctx.String("amount"),
		Decimals:  uint8(ctx.Uint("decimals")),
	}
	return withPassword(ctx, func(e *env, password []byte) (any, error) {
		return e.svc.Transfer(ctx.Context, password, req)
	})
}

func addAuthority(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.ShowSubcommandHelp(ctx)
	}
	req := model.AddAuthorityRequest{
		WalletID: ctx.Uint64(WalletIDFlag.Name),
		Pubkeys:  ctx.Args().Slice(),
	}
	return withPassword(ctx, func(e *env, password []byte) (any, error) {
		return e.svc.AddAuthorities(ctx.Context, password, req)
	})
}

func withPassword(ctx *cli.Context, run func(*env, []byte) (any, error)) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	password, err := readPassword("Keystore password: ")
	if err != nil {
		return err
	}
	defer clear(password)

	resp, err := run(e, password)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func readPassword(prompt string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal: run the command interactively to enter password")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	return password, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
