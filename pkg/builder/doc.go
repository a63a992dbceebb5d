// Package builder drives the packaging workflow of a Python project: it creates a
// virtual environment and runs pip, build, pytest and twine inside it.
// Commands are executed through mvdan.cc/sh so they behave the same on every platform.
package builder
