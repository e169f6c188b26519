package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PromptYesNo asks for confirmation on stdin before destructive actions
// like discarding dead letters or wiping the offline cache. It keeps asking
// until the answer is recognizable; a closed stdin reads as no.
func PromptYesNo(question string) bool {
	return promptYesNo(os.Stdin, os.Stdout, question)
}

func promptYesNo(in io.Reader, out io.Writer, question string) bool {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "%s (y/n): ", question)
		response, err := reader.ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))

		switch response {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		if err != nil {
			// No more input is coming; never assume consent.
			return false
		}
		fmt.Fprintln(out, "Please enter y or n")
	}
}
