package utils

import (
	"go.uber.org/zap"
)

// NewLogger returns a production logger in release mode and a development
// logger otherwise.
func NewLogger(release bool) (*zap.Logger, error) {
	if release {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
