package main

import "anywhere-shell/cmd"

func main() {
	cmd.Execute()
}
