package main

import "github.com/slotter-org/gemini-chat/internal/commands"

func main() {
	commands.Execute()
}
