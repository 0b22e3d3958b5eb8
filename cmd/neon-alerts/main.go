package main

import "github.com/ogulcanaydogan/neon-billing-alerts/internal/cli"

func main() {
	cli.Execute()
}
