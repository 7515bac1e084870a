package main

import (
	"github.com/tickwatch/tickwatch/internal/cli"
	"github.com/tickwatch/tickwatch/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
