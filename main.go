package main

import "github.com/chrisdamba/menuflow/cmd"

func main() {
	cmd.Execute()
}
