package main

import "github.com/adarshjiiidev/Kagazi/internal/cli"

func main() {
	cli.Execute()
}
