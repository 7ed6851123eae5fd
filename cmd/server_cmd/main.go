package main

import (
	"fmt"

	"github.com/TEENet-io/fiat-bridge-go/cmd"
	"github.com/TEENet-io/fiat-bridge-go/logconfig"
	"github.com/spf13/viper"
)

const (
	ENV_CONFIG_FILE_PATH = "FIAT_BRIDGE_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Fiat bridge server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Fiat bridge server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	logconfig.ConfigLogger(viper.GetString("LOG_LEVEL"))

	// Make the configuration
	cfg := PrepareFiatBridgeServerConfig()

	fmt.Println("Starting fiat bridge server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartFiatBridgeServerAndWait(cfg)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareFiatBridgeServerConfig reads configuration variables and returns a FiatBridgeServerConfig.
func PrepareFiatBridgeServerConfig() *cmd.FiatBridgeServerConfig {
	viper.SetDefault("ETH_START_BLK", -1)
	viper.SetDefault("DB_BACKEND", "sqlite")
	viper.SetDefault("HTTP_IP", "0.0.0.0")
	viper.SetDefault("HTTP_PORT", "3001")
	viper.SetDefault("RATE_BURST", 20)

	return &cmd.FiatBridgeServerConfig{
		// eth side
		EthRpcUrl:          viper.GetString("ETH_RPC_URL"),
		EthCoreAccountPriv: viper.GetString("ETH_CORE_ACCOUNT_PRIV"),
		EthPayoutContract:  viper.GetString("ETH_PAYOUT_CONTRACT"),
		EthMintContract:    viper.GetString("ETH_MINT_CONTRACT"),
		EthStartBlk:        viper.GetInt64("ETH_START_BLK"),
		EthPollOnly:        viper.GetBool("ETH_POLL_ONLY"),
		EthMaxBlockRange:   viper.GetUint64("ETH_MAX_BLOCK_RANGE"),
		EthConfirmations:   viper.GetUint64("ETH_CONFIRMATIONS"),
		// ledger side
		DbBackend:   viper.GetString("DB_BACKEND"),
		DbFilePath:  viper.GetString("DB_FILE_PATH"),
		PostgresDSN: viper.GetString("POSTGRES_DSN"),
		// settlement
		TokenDecimals: viper.GetInt("TOKEN_DECIMALS"),
		// Http side
		HttpIp:    viper.GetString("HTTP_IP"),
		HttpPort:  viper.GetString("HTTP_PORT"),
		ApiKey:    viper.GetString("API_KEY"),
		RateLimit: viper.GetFloat64("RATE_LIMIT"),
		RateBurst: viper.GetInt("RATE_BURST"),

		DisableMonitor: viper.GetBool("DISABLE_MONITOR"),
	}
}
