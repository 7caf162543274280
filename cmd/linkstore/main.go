package main

import "github.com/emrgen/linkstore/cmd"

func main() {
	cmd.Execute()
}
