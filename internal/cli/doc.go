// Package cli handles command-line argument parsing for the proxygen tool.
package cli
