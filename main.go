package main

import "github.com/ValentinKolb/cloudstore/cmd"

func main() {
	cmd.Execute()
}
