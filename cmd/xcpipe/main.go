package main

import "github.com/vburojevic/xcpipe/internal/cli"

func main() {
	cli.Execute()
}
