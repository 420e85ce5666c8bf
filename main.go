package main

import "github.com/KIWI0912/notar/cmd/notar"

func main() {
	notar.Execute()
}
