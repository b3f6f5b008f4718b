package main

import "techcart/internal/cmd"

func main() {
	cmd.Execute()
}
