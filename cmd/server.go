/*
Copyright © 2025 SheShield

*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	devConfig "github.com/sheshield/sheshield/dev/config"
	"github.com/sheshield/sheshield/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start a sheshield server",
	Long: `The sheshield server houses the safety companion backend - accounts,
emergency contacts, location alerts & community posts`,
	Run: func(cmd *cobra.Command, args []string) {
		if !isDevEnv && serverConfigFile == "" {
			cobra.CheckErr(formattedError("--sconfig is required when not running with --dev"))
		}

		server.Start(serverConfig(), isDevEnv)
	},
}

var serverConfigFile string

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
}

func serverConfig() *viper.Viper {
	config := viper.New()

	if isDevEnv {
		if serverConfigFile != "" {
			fmt.Println(warningLabel, "--sconfig is ignored in dev mode")
		}
		serverConfigFile = devConfigFilePath()
	}

	config.SetConfigFile(serverConfigFile)
	config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		log.Panic(fmt.Sprintf("error reading server config file: %v", err))
	}

	return config
}

// devConfigFilePath returns the path to the dev server config,
// creating it with the default content if it doesn't exist yet.
func devConfigFilePath() string {
	configDir, err := os.Getwd()
	if err != nil {
		log.Panic(err)
	}

	configFilePath := filepath.Join(configDir, "dev", "config", "server.yml")
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		cobra.CheckErr(os.MkdirAll(filepath.Dir(configFilePath), 0700))
		cobra.CheckErr(ioutil.WriteFile(configFilePath, []byte(devConfig.SERVER_YML), 0600))
	}

	return configFilePath
}
