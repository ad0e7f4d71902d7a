package main

// Backend blank imports — each import activates a self-registering vendor
// adapter. Add new backend kinds here as they are implemented.

import (
	_ "github.com/lumigen/lumigen/internal/adapter/httpgen"
)
