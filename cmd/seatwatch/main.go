package main

import (
	"os"
)

// @title SeatWatch Ops API
// @version 1.0.0
// @description Operational surface of the seat monitor: probes, catalog inspection and scheduler control
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
