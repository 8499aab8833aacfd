package main

import (
	"os"

	"github.com/yulifengwx/RazorRockstars/cli"
)

func main() {
	os.Exit(cli.Execute())
}
