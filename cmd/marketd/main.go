package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/crypto"
	"nftmarket/observability/logging"
	"nftmarket/rpc"
	"nftmarket/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MARKET_ENV"))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db)
	if err != nil {
		logger.Error("Failed to initialise node", slog.Any("error", err))
		os.Exit(1)
	}
	node.SetTokenURI(cfg.TokenURI)
	node.SetDevFaucet(cfg.DevFaucet)

	logger.Info("Ledger ready",
		slog.String("network", cfg.NetworkName),
		slog.String("market", addrString(node.MarketAddress())),
		slog.String("collection", addrString(node.CollectionAddress())),
		slog.Bool("devFaucet", cfg.DevFaucet),
	)

	server := rpc.NewServer(node)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func addrString(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.MarketPrefix, addr[:]).String()
}
