package main

import (
	"os"

	"horse.fit/gazette/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
