package main

import "github.com/frahmantamala/topup-billing/cmd"

func main() {
	cmd.Execute()
}
