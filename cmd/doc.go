// Package cmd implements the command-line interface of dEcho. It provides a
// hierarchical command structure for running the echo server and talking to it
// as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the echo server
//   - client: Commands for sending messages and benchmarking a server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See decho -help for a list of all commands.
package cmd
