// Package cli implements the docstamp command line interface.
package cli

import (
	"fmt"
	"os"
)

var osExit = os.Exit

func Usage() {
	fmt.Printf("Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  sign    Stamp a document file with signature artifacts")
	fmt.Println("")
	fmt.Printf("Use '%s <command> -h' for command-specific help\n", os.Args[0])
	osExit(1)
}

// Execute dispatches the command named in the arguments.
func Execute() {
	if len(os.Args) < 2 {
		Usage()
		return
	}
	switch os.Args[1] {
	case "sign":
		SignCommand()
	default:
		Usage()
	}
}
