package main

import "github.com/lepinkainen/crate/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
