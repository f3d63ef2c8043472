package main

import "github.com/b2gm/lodmap/cmd"

func main() {
	cmd.Main(cmd.PrintCmds)
}
