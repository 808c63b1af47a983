package main

import "github.com/bryanchriswhite/livejar/cmd/livejar/commands"

func main() {
	commands.Execute()
}
