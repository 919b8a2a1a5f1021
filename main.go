package main

import "github.com/Siddhant-K-code/projcoords/cmd"

func main() {
	cmd.Execute()
}
