package main

import "github.com/antaris-inc/go-xtce/cmd"

func main() {
	cmd.Execute()
}
