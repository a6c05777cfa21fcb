package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trailkeys/keybot/core/buildinfo"
	corecmd "github.com/trailkeys/keybot/core/cmd"
	"github.com/trailkeys/keybot/internal/bot"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("keybot %s (%s)\n", buildinfo.Version, buildinfo.Commit)
		return
	}

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "KEYBOT_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        bot.LoadConfig,
		Bootstrap:         bot.Bootstrap,
	})
	if err != nil {
		log.Fatalf("keybot: %v", err)
	}
}
