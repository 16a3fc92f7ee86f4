package main

import "compras/internal/cli"

func main() {
	cli.Main()
}
