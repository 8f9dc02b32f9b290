package main

import "github.com/dhcgn/eml-digest/cmd"

func main() {
	cmd.Execute()
}
