package main

import "github.com/tawqee/docstamp/cli"

func main() {
	cli.Execute()
}
