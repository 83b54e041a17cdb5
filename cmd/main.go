package main

import (
	"os"

	"github.com/quizairium/quizairium/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
