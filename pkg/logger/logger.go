package logger

import (
	"go.uber.org/zap"
)

func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}

// WithOwner returns a logger carrying the owner id on every entry.
func WithOwner(ownerID string, logger *zap.Logger) *zap.Logger {
	if ownerID == "" {
		return logger
	}
	return logger.With(zap.String("owner_id", ownerID))
}
