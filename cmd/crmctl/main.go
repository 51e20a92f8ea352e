// Package main is the entry point for the crmctl CLI.
package main

import "github.com/white/crm-backend/internal/cli"

func main() {
	cli.Execute()
}
