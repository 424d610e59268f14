package main

import (
	"fmt"
	"os"

	"github.com/theapemachine/mem0-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
