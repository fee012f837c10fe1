// Package main is the entry point for the Zoho MCP bridge.
package main

import (
	"fmt"
	"os"

	"github.com/zohobridge/mcp-gateway/cmd/bridge/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "there was an error: %v\n", err)
		os.Exit(1)
	}
}
