package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/vpnda/akahu-sync/cmd/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
