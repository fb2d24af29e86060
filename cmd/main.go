package main

import (
	"github.com/joho/godotenv"

	"pipecrm/internal/app"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	app.Run()
}
