package main

import (
	"os"

	"github.com/ziadkadry99/funcall/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
