package main

import "github.com/xiaot623/gogo/sopdesk/cmd"

func main() {
	cmd.Execute()
}
