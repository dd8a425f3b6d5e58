package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	sourcePrompt = "Enter a magnet link or the path to a file.torrent: "
	dirPrompt    = "Enter the download folder (default is ./downloads): "
)

// Answers is what the user typed at startup.
type Answers struct {
	Source string
	Dir    string // empty means the default folder
}

// Ask prints both prompts to out and reads one line for each from in.
// Answers are trimmed. A missing final newline is fine; running out of input
// before the first answer is an error.
func Ask(in *bufio.Reader, out io.Writer) (Answers, error) {
	var a Answers

	source, err := readLine(in, out, sourcePrompt)
	if err != nil {
		return a, fmt.Errorf("read source: %w", err)
	}
	a.Source = source

	dir, err := readLine(in, out, dirPrompt)
	if err != nil && !errors.Is(err, io.EOF) {
		return a, fmt.Errorf("read download folder: %w", err)
	}
	a.Dir = dir

	return a, nil
}

func readLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)

	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
