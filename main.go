package main

import "mcpd/cmd/mcpd/root"

func main() {
	root.Execute()
}
