package main

import "github.com/nextlevelbuilder/leadclaw/cmd"

func main() {
	cmd.Execute()
}
