package logger

import (
	"go.uber.org/zap"
)

// S retorna el SugaredLogger del singleton.
//
// Ejemplo:
//
//	logger.S().Infof("config %s applied to %s", configName, groupName)
func S() *zap.SugaredLogger {
	return L().Sugar()
}
