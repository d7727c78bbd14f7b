// AccessWatch - Access-Log Audit Tool
//
// AccessWatch audits access-log exports from personal-information
// management platforms. Define your thresholds, point it at the exported
// spreadsheets, and review the ordered findings report.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/secwatch/accesswatch/internal/cli"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	level := zerolog.WarnLevel
	if env := os.Getenv("ACCESSWATCH_LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	os.Exit(cli.Execute())
}
