package main

import "github.com/isometry/dirconv/cmd"

func main() {
	cmd.Execute()
}
