package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:   "drover",
		Short: "Benchmark harness driving LLM agents against a remote task gateway",
	}

	root.AddCommand(runCMD(), serveCMD(), migrateCMD())
	_ = root.Execute()
}
