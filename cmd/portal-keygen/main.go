package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plugin-portal/pkg/packages"
)

// portal-keygen prints a fresh package signing key pair. The private key is
// the value for PORTAL_SIGNING_KEY; the public key is what clients pin.
func main() {
	publicOnly := flag.String("public-from", "", "Print the public key for an existing base64 private key")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)

	var (
		signer *packages.Signer
		err    error
	)
	if *publicOnly != "" {
		signer, err = packages.ParseSigner(*publicOnly)
		if err != nil {
			logger.Fatalf("Failed to parse private key: %v", err)
		}
		fmt.Printf("algorithm:   %s\n", packages.SignatureAlgorithm)
		fmt.Printf("public_key:  %s\n", signer.EncodedPublicKey())
		return
	}

	signer, err = packages.GenerateSigner()
	if err != nil {
		logger.Fatalf("Failed to generate signing key: %v", err)
	}
	logger.Debug("Generated signing key pair")

	fmt.Printf("algorithm:   %s\n", packages.SignatureAlgorithm)
	fmt.Printf("private_key: %s\n", signer.EncodedPrivateKey())
	fmt.Printf("public_key:  %s\n", signer.EncodedPublicKey())
	fmt.Fprintln(os.Stderr, "Store private_key as PORTAL_SIGNING_KEY; keep it secret.")
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
