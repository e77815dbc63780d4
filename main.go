package main

import cmd "github.com/inference-gateway/desktop-agent/cmd"

func main() {
	cmd.Execute()
}
