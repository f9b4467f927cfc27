package db

import (
	"fmt"

	xe "github.com/opst/pht-central/pkg/errors"
)

// Missing tells requested record is not found.
//
// It is classified as xe.NotFound .
func Missing(table string, identity string) error {
	return xe.New(xe.NotFound, fmt.Sprintf("%s is not found in %s", identity, table))
}
