//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "studycards"

// Default target
var Default = Build

// Build compiles the studycards binary
func Build() error {
	return sh.RunV("go", "build", "-o", binary, "./cmd/studycards")
}

// Test runs the unit tests
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Race runs the unit tests with the race detector
func Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Install copies the binary to ~/go/bin
func Install() error {
	mg.Deps(Build)
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dst := filepath.Join(home, "go", "bin", binary)
	if err := sh.Copy(dst, binary); err != nil {
		return fmt.Errorf("failed to install %s: %w", dst, err)
	}
	return os.Chmod(dst, 0755)
}

// Clean removes the build output
func Clean() error {
	return sh.Rm(binary)
}
