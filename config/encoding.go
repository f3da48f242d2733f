package config

import (
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var currentCharMap *charmap.Charmap = charmap.Windows1252

func SetEncoding(name string) error {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				currentCharMap = cm
				return nil
			}
		}
	}
	return errors.Errorf("Failed to find encoding %q", name)
}

func GetEncoding() *charmap.Charmap {
	return currentCharMap
}
