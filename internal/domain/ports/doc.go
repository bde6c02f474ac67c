// Package ports defines the interfaces the web form engine's adapters
// must implement. This follows the hexagonal architecture pattern and
// enables testability by allowing mock implementations for unit testing.
package ports
