// Command friendlychat is a terminal client for a realtime group chat.
package main

import "github.com/diogo/friendlychat/internal/commands"

func main() {
	commands.Execute()
}
