package main

import (
	"fmt"
	"io"

	"github.com/rickgao/padlink/internal/pairing"
)

// pairCommand prints the target a scanned payload points at.
func pairCommand(out io.Writer, text string) error {
	target, err := pairing.Parse(text)
	if err != nil {
		return err
	}
	payload, err := pairing.Encode(target)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "host:    %s\n", target.Host)
	fmt.Fprintf(out, "port:    %d\n", target.Port)
	fmt.Fprintf(out, "url:     %s\n", target.URL())
	fmt.Fprintf(out, "payload: %s\n", payload)
	return nil
}
