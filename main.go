package main

import (
	"os"

	"smartschedule/core/logger"
	"smartschedule/core/server"
)

func main() {
	if err := server.Run(); err != nil {
		logger.Error("Main:Run:Failed", "error", err)
		os.Exit(1)
	}
}
