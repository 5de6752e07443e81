package main

import "github.com/gorient/gorient/cmd"

func main() {
	cmd.Execute()
}
