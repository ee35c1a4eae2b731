package main

import (
	"log"

	"github.com/joho/godotenv"

	"ragchat/internal/cli"
)

func main() {
	_ = godotenv.Load()
	if err := cli.Execute(); err != nil {
		log.Fatalf("ragchat: %v", err)
	}
}
