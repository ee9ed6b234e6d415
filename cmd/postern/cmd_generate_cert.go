package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postern/internal/config"
	"postern/pkg/certgen"
)

var commandGenerateCert = &cobra.Command{
	Use:   "generate-cert [host...]",
	Short: "Generate a fresh self-signed TLS certificate pair",
	Long:  "Generate a fresh self-signed TLS certificate pair, overwriting any existing one. Hosts default to localhost.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		certFile, keyFile := cfg.TLS.CertFile, cfg.TLS.KeyFile
		var err error
		if certFile == "" {
			if certFile, err = config.Path("cert.pem"); err != nil {
				logrus.Fatal(err)
			}
		}
		if keyFile == "" {
			if keyFile, err = config.Path("key.pem"); err != nil {
				logrus.Fatal(err)
			}
		}
		if err := certgen.Generate(certFile, keyFile, args...); err != nil {
			logrus.Fatal("generate certificate: ", err)
		}
		fmt.Printf("Certificate written to %s\n", certFile)
		fmt.Printf("Key written to %s\n", keyFile)
	},
}

func init() {
	mainCommand.AddCommand(commandGenerateCert)
}
