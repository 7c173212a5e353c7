package fmtt

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// PrintErrChain walks an error chain and prints each layer with its type.
func PrintErrChain(err error) {
	if err == nil {
		fmt.Println("<nil>")
		return
	}

	i := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Printf("[%d] %T: %v\n", i, e, e)
		i++
	}
}

// PrintErrChainDebug dumps every layer of an error chain with spew, exposing
// wrapped API errors (HTTP status codes, response bodies) that %v hides.
func PrintErrChainDebug(err error) {
	if err == nil {
		fmt.Println("<nil>")
		return
	}

	for i := 0; err != nil; err = errors.Unwrap(err) {
		fmt.Printf("[%d] %T: %v\n", i, err, err)
		spew.Dump(err)
		i++
	}
}
