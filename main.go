package main

import "github.com/KaramelBytes/docshape-cli/cmd"

func main() {
	cmd.Execute()
}
