package main

import "github.com/Tiliavir/epunch/cmd"

func main() {
	cmd.Execute()
}
