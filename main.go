package main

import (
	"errors"
	"os"

	"github.com/pam-nextcloud/ncbroker/app"
)

const exitInterrupted = 130

func main() {
	err := app.Execute()
	if err != nil {
		if errors.Is(err, app.ErrInterrupted) {
			os.Exit(exitInterrupted)
		}

		os.Exit(1)
	}
}
