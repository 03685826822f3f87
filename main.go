package main

import "github.com/ostrander/kestrel/cmd"

func main() {
	cmd.Execute()
}
