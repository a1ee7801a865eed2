// Command vnengine validates, plays, traces, and replays visual novel scripts.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/roach88/vnengine/internal/cli"
)

func main() {
	// A .env file is optional; its VNENGINE_* values feed the config layer.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
