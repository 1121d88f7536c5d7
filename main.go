package main

import "github.com/ValentinKolb/dNotes/cmd"

func main() {
	cmd.Execute()
}
