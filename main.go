package main

import (
	"fmt"
	"os"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
