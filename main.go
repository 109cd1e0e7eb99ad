/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/shieldline/siteapi/cmd"

func main() {
	cmd.Execute()
}
