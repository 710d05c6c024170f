package main

import "github.com/mcoot/typerace-go/internal/cli"

func main() {
	cli.Execute()
}
