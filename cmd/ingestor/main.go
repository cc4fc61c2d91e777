// Command ingestor mirrors the content store's listings into Postgres and
// announces every completed sync over NATS.
package main

import (
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
