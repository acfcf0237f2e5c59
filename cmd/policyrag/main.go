// Package main provides the entry point for the policyrag CLI.
package main

import (
	"os"

	"github.com/mohik-agnext/docker-chatbot/cmd/policyrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
