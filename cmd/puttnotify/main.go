package main

import (
	"github.com/nhle/puttnotify/internal/cmd"
)

func main() {
	cmd.Execute()
}
