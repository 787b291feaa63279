package main

import "github.com/fachebot/talk-digest/internal/cli"

func main() {
	cli.Execute()
}
