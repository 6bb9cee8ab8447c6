//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/sh"
)

// Test runs the unit tests. The SQLite-backed tests need cgo.
func Test() error {
	if err := sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, "go", "test", "./..."); err != nil {
		return fmt.Errorf("go test: %w", err)
	}
	return nil
}

// Cover runs the unit tests and writes coverage.out.
func Cover() error {
	if err := sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, "go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return fmt.Errorf("go test: %w", err)
	}
	return sh.RunV("go", "tool", "cover", "-func=coverage.out")
}
