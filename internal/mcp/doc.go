// Package mcp exposes the history engine over the Model Context Protocol on
// stdio. Stdout carries the protocol, so all logging in the process goes to
// stderr.
package mcp
