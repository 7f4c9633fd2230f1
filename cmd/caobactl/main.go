package main

import "github.com/caoba-erp/caoba-erp/cmd/caobactl/cli"

func main() {
	cli.Execute()
}
