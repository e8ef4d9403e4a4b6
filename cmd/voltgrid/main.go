package main

import "github.com/voltgrid-network/voltgrid/internal/cli"

func main() {
	cli.Execute()
}
