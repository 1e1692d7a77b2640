// main.go
package main

import (
	"fmt"

	"github.com/crazy8156/okx/cmd"
)

const banner = `
        ________ ____  __.____  ___ ___.           __
       \_____  \    |/ _|\   \/  / \_ |__   _____/  |_
        /   |   \      <   \     /   | __ \ /  _ \   __\
       /    |    \    |  \  /     \  | \_\ (  <_> )  |
       \_______  /____|__ \/___/\  \ |___  /\____/|__|
               \/        \/      \_/     \/

	Indicator-driven OKX spot trading bot
[]=========================================================================[]
`

func main() {
	fmt.Print(banner)
	cmd.Execute()
}
