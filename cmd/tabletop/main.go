// Command tabletop runs the admin and player bots of a tabletop campaign.
package main

import (
	"log"

	"github.com/m3rciful/tabletop/core/cmd"
	"github.com/m3rciful/tabletop/internal/app"
	"github.com/m3rciful/tabletop/internal/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.Application, error) {
			return app.New(cfg.(*config.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
