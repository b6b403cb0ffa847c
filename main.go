package main

import "github.com/chatgraph-poc/server/cmd"

func main() {
	cmd.Execute()
}
