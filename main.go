package main

import "github.com/uroborus2s/campus-sync/internal/cmd"

func main() {
	cmd.Execute()
}
