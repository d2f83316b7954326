package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/portdeveloper/abi-recon/internal/assembler"
	"github.com/portdeveloper/abi-recon/internal/cache"
	"github.com/portdeveloper/abi-recon/internal/chainreader"
	"github.com/portdeveloper/abi-recon/internal/server"
	"github.com/portdeveloper/abi-recon/internal/sigdb"
	"github.com/portdeveloper/abi-recon/internal/verified"
)

var (
	debug bool

	servePort    string
	fetchRPCURL  string
	fetchChainID int64
)

var rootCmd = &cobra.Command{
	Use:   "abi-recon",
	Short: "Reconstruct contract ABIs for unverified contracts",
	Long: "abi-recon rebuilds a usable ABI from deployed bytecode, signature\n" +
		"databases and verification registries, unwinding proxy patterns on the way.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		store, err := cache.NewRistretto(10_000)
		if err != nil {
			return fmt.Errorf("init cache: %w", err)
		}

		srv := server.New(store, verified.DefaultLoader(log), sigdb.DefaultResolver(log), log)
		log.Info().Str("port", servePort).Msg("starting abi-recon")
		return srv.Run(":" + servePort)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <address>",
	Short: "Reconstruct one contract's ABI and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		reader, err := chainreader.Dial(fetchRPCURL)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", fetchRPCURL, err)
		}
		defer reader.Close()

		chainID := fetchChainID
		if chainID == 0 {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			id, err := reader.ChainID(ctx)
			if err != nil {
				return fmt.Errorf("query chain id: %w", err)
			}
			chainID = id.Int64()
		}

		asm := assembler.New(reader, verified.DefaultLoader(log), sigdb.DefaultResolver(log), cache.NewMemory(), log)
		result, err := asm.Assemble(cmd.Context(), args[0], chainID)
		if err != nil {
			return err
		}

		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	},
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	serveCmd.Flags().StringVar(&servePort, "port", envOr("PORT", "8080"), "listen port")
	fetchCmd.Flags().StringVar(&fetchRPCURL, "rpc-url", "", "RPC endpoint to read the chain through")
	fetchCmd.Flags().Int64Var(&fetchChainID, "chain-id", 0, "chain id (defaults to the endpoint's eth_chainId)")
	_ = fetchCmd.MarkFlagRequired("rpc-url")
	rootCmd.AddCommand(serveCmd, fetchCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		// Env-only configuration is fine; .env is a dev convenience.
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
