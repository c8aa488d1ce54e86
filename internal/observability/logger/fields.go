package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - TRANSPORTE
// =================================================================================

// Action crea un campo para la acción remota (ej: "ListConfigs").
func Action(v string) zap.Field {
	return zap.String("action", v)
}

// Endpoint crea un campo para el endpoint ("User/ListConfigs").
func Endpoint(v string) zap.Field {
	return zap.String("endpoint", v)
}

// RequestID crea un campo para el token de correlación.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// AppStatus crea un campo para commonResponse.status.
func AppStatus(v int32) zap.Field {
	return zap.Int32("app_status", v)
}

// Duration crea un campo para la duración de una llamada.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Bytes crea un campo para el tamaño de un payload.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// GroupName crea un campo para el nombre del agent group.
func GroupName(v string) zap.Field {
	return zap.String("group_name", v)
}

// ConfigName crea un campo para el nombre de la config.
func ConfigName(v string) zap.Field {
	return zap.String("config_name", v)
}

// Anchor crea un campo para la entidad ancla de un editor de asociaciones.
func Anchor(v string) zap.Field {
	return zap.String("anchor", v)
}

// Member crea un campo para el miembro de una asociación.
func Member(v string) zap.Field {
	return zap.String("member", v)
}

// Generation crea un campo para la generación del editor.
func Generation(v uint64) zap.Field {
	return zap.Uint64("generation", v)
}

// Field crea un campo para el path de un campo del árbol normalizado.
func Field(v string) zap.Field {
	return zap.String("field", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (cli, editor, transport).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any crea un campo de cualquier tipo. Usar con moderación.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
