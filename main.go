package main

import "github.com/corge-build/corge/cmd"

func main() {
	cmd.Execute()
}
