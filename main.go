package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "cinevault-web-ui"
	app.Usage = "Aggregates movie metadata and per-user watch state into one view"
	app.Version = "0.1.0"
	configure(app)
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("failed to run app")
	}
}
