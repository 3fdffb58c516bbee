package controllers

import "errors"

var (
	errConnectionNotFound    = errors.New("connection not found")
	errNoConnectedConnection = errors.New("workspace has no connected connection")
)
