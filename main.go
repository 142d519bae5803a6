package main

import (
	_ "time/tzdata"

	"github.com/vibast-solutions/ms-go-paylink/cmd"
)

func main() {
	cmd.Execute()
}
