package main

import "github.com/tessro/markov/internal/cli"

func main() {
	cli.Execute()
}
