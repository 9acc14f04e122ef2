package main

import "github.com/dyike/clarence/internal/cli"

func main() {
	cli.Run()
}
