package main

import "github.com/vibecheck/chatsync/cmd/chatsync-cli/cmd"

func main() {
	cmd.Execute()
}
