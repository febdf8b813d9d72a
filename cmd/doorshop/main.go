package main

import (
	"log"

	corecmd "github.com/m3rciful/doorshop/core/cmd"
	"github.com/m3rciful/doorshop/internal/app"
	"github.com/m3rciful/doorshop/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
