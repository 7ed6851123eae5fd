package main

import (
	"fmt"

	"github.com/TEENet-io/fiat-bridge-go/cmd"
	"github.com/TEENet-io/fiat-bridge-go/logconfig"
	"github.com/spf13/viper"
)

const (
	ENV_CONFIG_FILE_PATH = "FIAT_MONITOR_CONFIG"
)

func main() {
	viper.AutomaticEnv()

	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Payout monitor configuration file = %s\n", _config_file)

	if !cmd.FileExists(_config_file) {
		fmt.Printf("Payout monitor configuration file not found: %s\n", _config_file)
		return
	}

	viper.SetConfigFile(_config_file)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return
	}

	logconfig.ConfigLogger(viper.GetString("LOG_LEVEL"))

	viper.SetDefault("ETH_START_BLK", -1)
	viper.SetDefault("DB_BACKEND", "sqlite")
	viper.SetDefault("API_URL", "http://localhost:3001")

	cfg := &cmd.PayoutMonitorConfig{
		EthRpcUrl:         viper.GetString("ETH_RPC_URL"),
		EthPayoutContract: viper.GetString("ETH_PAYOUT_CONTRACT"),
		EthStartBlk:       viper.GetInt64("ETH_START_BLK"),
		EthPollOnly:       viper.GetBool("ETH_POLL_ONLY"),
		EthMaxBlockRange:  viper.GetUint64("ETH_MAX_BLOCK_RANGE"),
		EthConfirmations:  viper.GetUint64("ETH_CONFIRMATIONS"),
		DbBackend:         viper.GetString("DB_BACKEND"),
		DbFilePath:        viper.GetString("DB_FILE_PATH"),
		PostgresDSN:       viper.GetString("POSTGRES_DSN"),
		ApiUrl:            viper.GetString("API_URL"),
		ApiKey:            viper.GetString("API_KEY"),
	}

	fmt.Println("Starting payout monitor... press Ctrl+C to kill it")
	cmd.StartPayoutMonitorAndWait(cfg)
}
