// src/parsers/factory.go
package parsers

import (
	"fmt"

	"github.com/kaizhangyahoo/st-my-investment/src/parsers/generic"
	"github.com/kaizhangyahoo/st-my-investment/src/parsers/ig"
)

func GetParser(source string) (Parser, error) {
	switch source {
	case "ig":
		return ig.NewParser(), nil
	case "generic", "":
		return generic.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
