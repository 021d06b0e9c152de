// Command keytool encrypts a Kalshi RSA private key for use with the bot's
// encrypted_key_path setting. The password is read from KALSHIBOT_KALSHI_KEY_PASSWORD.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/crypto"
)

func main() {
	in := flag.String("in", "", "path to the plaintext PEM private key")
	out := flag.String("out", "", "path to write the encrypted key file")
	flag.Parse()

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: keytool -in key.pem -out key.enc")
		os.Exit(2)
	}

	password := os.Getenv("KALSHIBOT_KALSHI_KEY_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "keytool: KALSHIBOT_KALSHI_KEY_PASSWORD must be set")
		os.Exit(2)
	}

	pem, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keytool: read key: %v\n", err)
		os.Exit(1)
	}

	encrypted, err := crypto.EncryptPEM(pem, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keytool: encrypt: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, encrypted, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "keytool: write: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("encrypted key written to %s\n", *out)
}
