package main

import "dexfren/backend/internal/cmd"

func main() {
	cmd.Execute()
}
