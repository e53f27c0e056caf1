//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the shape gallery on the OpenGL backend.
func (Run) Shapes() error {
	return runExample("shapes.go")
}

// Runs the instanced cube grid on the WebGPU backend.
func (Run) Cubes() error {
	return runExample("instanced_cubes.go", "-backend", "webgpu")
}

// Runs the textured scene with the lit.toml configuration.
func (Run) Textured() error {
	return runExample("textured.go", "-config", "examples/lit.toml")
}

func runExample(file string, args ...string) error {
	mg.Deps(Build.All)
	fmt.Println("Run example", file)
	_, err := executeCmd("go", withArgs(append([]string{"run", "examples/" + file}, args...)...), withStream())
	return err
}
