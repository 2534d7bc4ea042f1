package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// confirm спрашивает y/N. Без терминала на stdin отвечает «нет»: для скриптов есть --yes.
func confirm(cmd *cobra.Command, message string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(cmd.ErrOrStderr(), "stdin is not a terminal, pass --yes to confirm")
		return false
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	for {
		fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", message)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.TrimSpace(strings.ToLower(line)) {
		case "y", "yes":
			return true
		case "n", "no", "":
			return false
		default:
			fmt.Fprintln(cmd.OutOrStdout(), "Please enter 'y' or 'n'.")
		}
	}
}
