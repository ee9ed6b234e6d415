// Command postern runs the tunnel server and manages its user database.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postern/internal/config"
)

var (
	configPath string
	workingDir string
)

var mainCommand = &cobra.Command{
	Use:   "postern",
	Short: "HTTP server with a CONNECT tunnel to an SSH backend",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	mainCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "", "set configuration file path")
	mainCommand.PersistentFlags().StringVarP(&workingDir, "directory", "D", "", "set working directory")
}

func main() {
	if err := mainCommand.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

// loadConfig applies the working directory flag and reads the configuration,
// falling back to the defaults when no file exists.
func loadConfig() *config.Config {
	if workingDir != "" {
		if err := os.Chdir(workingDir); err != nil {
			logrus.Fatal(err)
		}
	}
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		logrus.Fatal("read config: ", err)
	}
	return cfg
}
