// Package main prints the stored form of an API key: its SHA-256 hash and display
// prefix. The server keeps only the hash, so this tool is used when seeding or
// checking api_keys rows by hand without running the server.
//
// Usage:
//
//	hash crs_1a2b3c4d_...
//	echo -n crs_1a2b3c4d_... | hash
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/component-request-system/crs/internal/auth"
)

func main() {
	key, err := readKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Printf("key_hash:   %s\n", auth.HashAPIKey(key))
	fmt.Printf("key_prefix: %s\n", auth.DisplayPrefix(key))
}

func readKey() (string, error) {
	if len(os.Args) > 1 {
		return strings.TrimSpace(os.Args[1]), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("no key given: %w", err)
		}
		return "", fmt.Errorf("no key given")
	}
	return line, nil
}
