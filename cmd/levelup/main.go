// Package main — точка входа сервера Level Up Solo.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"levelupsolo.app/server/cmd/levelup/root"
)

func main() {
	setupLogging()
	root.Execute()
}

// setupLogging настраивает формат логов. Уровень берётся из конфига позже.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
