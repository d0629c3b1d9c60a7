package main

import (
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/adapters/driving/cli"
)

func main() {
	cli.Execute()
}
