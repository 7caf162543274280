package main

import (
	"github.com/emrgen/linkstore/internal/config"
	"github.com/emrgen/linkstore/internal/server"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()
	cfg.LogLevel = "debug"
	config.SetupLogger(cfg)

	err := server.Start(cfg)
	if err != nil {
		logrus.Fatal(err)
	}
}
