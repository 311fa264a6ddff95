package main

import "github.com/muhammad1505/idm-open/cmd"

func main() {
	cmd.Execute()
}
