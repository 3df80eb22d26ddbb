package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlexZinkM/smart-wallet/internal/program"

	"github.com/gagliardetto/solana-go"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: Password is prompted at runtime and stored in memory - use GetPasswordBytes()
type Config struct {
	Port              string `envconfig:"PORT" default:"8080"`
	SolanaRPCURL      string `envconfig:"SOLANA_RPC_URL" default:"https://api.devnet.solana.com"`
	ProgramID         string `envconfig:"SMART_WALLET_PROGRAM_ID" default:"3jq9oBWGCUWmBynC8TTBL9KWJdGegsChJ1c8ksybGhum"`
	VerifierProgramID string `envconfig:"SECP256R1_PROGRAM_ID" default:"Secp256r1SigVerify1111111111111111111111111"`
	VerifierIndex     int    `envconfig:"SECP256R1_IX_INDEX" default:"0"`
	KeyFilePath       string `envconfig:"KEY_FILE_PATH"`
	PayerKeyPath      string `envconfig:"PAYER_KEY_PATH" default:"~/.config/solana/id.json"`
	ComputeUnitLimit  uint32 `envconfig:"COMPUTE_UNIT_LIMIT" default:"300000"`
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment    bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	if _, err := c.ProgramConfig(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// Set replaces the global configuration. Used by the CLI after applying flags.
func Set(c *Config) {
	cfg = c
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// ProgramConfig returns the identities the program is built with.
func (c *Config) ProgramConfig() (program.Config, error) {
	programID, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return program.Config{}, fmt.Errorf("invalid SMART_WALLET_PROGRAM_ID: %w", err)
	}
	verifierID, err := solana.PublicKeyFromBase58(c.VerifierProgramID)
	if err != nil {
		return program.Config{}, fmt.Errorf("invalid SECP256R1_PROGRAM_ID: %w", err)
	}
	if c.VerifierIndex < 0 {
		return program.Config{}, errors.New("SECP256R1_IX_INDEX must not be negative")
	}
	return program.Config{
		ProgramID:         programID,
		VerifierProgramID: verifierID,
		VerifierIndex:     c.VerifierIndex,
	}, nil
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetSolanaRPCURL returns Solana RPC URL from configuration
func GetSolanaRPCURL() string {
	return Get().SolanaRPCURL
}

// GetKeyFilePath returns path to the .cwt keystore from configuration
func GetKeyFilePath() string {
	return Get().KeyFilePath
}

// GetPayerKeyPath returns the fee payer keypair path with ~ expanded
func GetPayerKeyPath() string {
	return expandHome(Get().PayerKeyPath)
}

// GetComputeUnitLimit returns the compute budget for verify-and-execute
func GetComputeUnitLimit() uint32 {
	return Get().ComputeUnitLimit
}

// GetProgramConfig returns the program identities from configuration
func GetProgramConfig() program.Config {
	pc, err := Get().ProgramConfig()
	if err != nil {
		// Init validated it.
		panic(err)
	}
	return pc
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

var passwordBytes []byte

// PromptForPassword prompts the user for the keystore password in the terminal.
// The password is read without echoing (hidden input) and stored in memory.
// Call this at startup before the server begins handling requests.
func PromptForPassword() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run the app interactively to enter password")
	}
	fmt.Fprint(os.Stderr, "Enter keystore password: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("password cannot be empty")
	}
	SetPassword(raw)
	clear(raw)
	return nil
}

// SetPassword stores a copy of password in memory.
func SetPassword(password []byte) {
	passwordBytes = make([]byte, len(password))
	copy(passwordBytes, password)
}

// GetPasswordBytes returns the password stored in memory (from PromptForPassword).
// Returns an error if the password was not set.
// Caller must zero the returned slice after use for security.
func GetPasswordBytes() ([]byte, error) {
	if len(passwordBytes) == 0 {
		return nil, errors.New("password not set: call PromptForPassword at startup")
	}
	out := make([]byte, len(passwordBytes))
	copy(out, passwordBytes)
	return out, nil
}
