//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binaryName = "pinphotos"

var Default = Build

// Build builds the pinphotos binary
func Build() error {
	fmt.Println("Building", binaryName)
	return sh.RunV("go", "build", "-o", binaryName, "./cmd/pinphotos")
}

// Test runs all tests
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Vet runs go vet
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Install installs the binary into $GOPATH/bin
func Install() error {
	mg.Deps(Test)

	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	fmt.Println("Installing to", filepath.Join(gopath, "bin", binaryName))
	return sh.RunV("go", "install", "./cmd/pinphotos")
}

// Clean removes the built binary
func Clean() error {
	return os.RemoveAll(binaryName)
}
