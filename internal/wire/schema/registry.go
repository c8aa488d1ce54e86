// Package schema es el registro de mensajes de la API de usuario del config
// server. Construye los descriptores protobuf en runtime (sin código
// generado) y convierte entre árboles Go planos y bytes en el wire.
//
// Los árboles de entrada son map[string]any con las claves iguales a los
// nombres de campo del schema ("configDetail", "groupName"). Los árboles de
// salida usan las mismas claves; los campos bytes salen como []byte, los
// repeated como []any (nunca nil) y los mensajes no seteados se omiten.
package schema

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

var (
	ErrUnknownType  = errors.New("schema: unknown message type")
	ErrUnknownField = errors.New("schema: unknown field")
	ErrFieldKind    = errors.New("schema: value does not match field kind")
)

// Registry resuelve tipos de mensaje por nombre.
type Registry struct {
	file   protoreflect.FileDescriptor
	types  map[string]protoreflect.MessageDescriptor
	opaque []string
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default retorna el registro con el schema de la API de usuario y el set
// de campos opacos por defecto. Se construye una sola vez.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry()
		if err != nil {
			panic("schema: user API descriptors are invalid: " + err.Error())
		}
		defaultReg = r
	})
	return defaultReg
}

// NewRegistry construye un registro nuevo. extraOpaque se suma a los campos
// opacos por defecto (nombres simples o paths con puntos).
func NewRegistry(extraOpaque ...string) (*Registry, error) {
	fd, err := protodesc.NewFile(fileDescriptorProto(), nil)
	if err != nil {
		return nil, fmt.Errorf("schema: building file descriptor: %w", err)
	}

	r := &Registry{
		file:  fd,
		types: make(map[string]protoreflect.MessageDescriptor),
	}
	msgs := fd.Messages()
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		r.types[string(md.Name())] = md
	}

	seen := make(map[string]bool)
	for _, f := range append(append([]string{}, defaultOpaque...), extraOpaque...) {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		r.opaque = append(r.opaque, f)
	}
	return r, nil
}

// OpaqueFields retorna los campos marcados como opacos.
func (r *Registry) OpaqueFields() []string {
	return append([]string(nil), r.opaque...)
}

// Types retorna los nombres de todos los mensajes registrados, ordenados.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Actions retorna las acciones de usuario conocidas en orden de declaración.
func (r *Registry) Actions() []string {
	out := make([]string, 0, len(actionSpecs))
	for _, a := range actionSpecs {
		out = append(out, a.name)
	}
	return out
}

// Lookup retorna el descriptor de un tipo por nombre.
func (r *Registry) Lookup(typeName string) (protoreflect.MessageDescriptor, error) {
	md, ok := r.types[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return md, nil
}

// New construye un mensaje vacío del tipo indicado.
func (r *Registry) New(typeName string) (*dynamicpb.Message, error) {
	md, err := r.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(md), nil
}

// Build construye un mensaje del tipo indicado a partir de un árbol de campos.
func (r *Registry) Build(typeName string, fields map[string]any) (*dynamicpb.Message, error) {
	msg, err := r.New(typeName)
	if err != nil {
		return nil, err
	}
	if err := fill(msg, fields, typeName); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode serializa fields como un mensaje del tipo indicado.
func (r *Registry) Encode(typeName string, fields map[string]any) ([]byte, error) {
	msg, err := r.Build(typeName, fields)
	if err != nil {
		return nil, err
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("schema: marshal %s: %w", typeName, err)
	}
	return b, nil
}

// Decode parsea data como un mensaje del tipo indicado y lo retorna como árbol.
func (r *Registry) Decode(typeName string, data []byte) (map[string]any, error) {
	msg, err := r.New(typeName)
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("schema: unmarshal %s: %w", typeName, err)
	}
	return ToTree(msg), nil
}

// ToTree convierte un mensaje en árbol Go. Todos los campos escalares y
// repeated aparecen aunque tengan el valor default.
func ToTree(m protoreflect.Message) map[string]any {
	out := make(map[string]any)
	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		name := string(fd.Name())
		switch {
		case fd.IsMap():
			mm := make(map[string]any)
			m.Get(fd).Map().Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
				mm[k.String()] = fromValue(fd.MapValue(), v)
				return true
			})
			out[name] = mm
		case fd.IsList():
			l := m.Get(fd).List()
			arr := make([]any, 0, l.Len())
			for j := 0; j < l.Len(); j++ {
				arr = append(arr, fromValue(fd, l.Get(j)))
			}
			out[name] = arr
		case fd.Message() != nil:
			if m.Has(fd) {
				out[name] = ToTree(m.Get(fd).Message())
			}
		default:
			out[name] = fromValue(fd, m.Get(fd))
		}
	}
	return out
}

func fromValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return ToTree(v.Message())
	case protoreflect.BytesKind:
		return append([]byte{}, v.Bytes()...)
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.EnumKind:
		return int32(v.Enum())
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint32(v.Uint())
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint()
	case protoreflect.FloatKind:
		return float32(v.Float())
	case protoreflect.DoubleKind:
		return v.Float()
	default:
		return v.Interface()
	}
}

// fill copia fields en m. path se usa solo para mensajes de error.
func fill(m protoreflect.Message, fields map[string]any, path string) error {
	desc := m.Descriptor()
	for key, raw := range fields {
		fd := desc.Fields().ByName(protoreflect.Name(key))
		if fd == nil {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, path, key)
		}
		if raw == nil {
			continue
		}
		fpath := path + "." + key

		switch {
		case fd.IsMap():
			entries, ok := asMap(raw)
			if !ok {
				return fmt.Errorf("%w: %s expects a map, got %T", ErrFieldKind, fpath, raw)
			}
			mm := m.Mutable(fd).Map()
			for k, ev := range entries {
				val, err := toValue(fd.MapValue(), func() protoreflect.Value { return mm.NewValue() }, ev, fpath+"."+k)
				if err != nil {
					return err
				}
				mm.Set(protoreflect.ValueOfString(k).MapKey(), val)
			}
		case fd.IsList():
			items, ok := asList(raw)
			if !ok {
				return fmt.Errorf("%w: %s expects a list, got %T", ErrFieldKind, fpath, raw)
			}
			list := m.Mutable(fd).List()
			for i, item := range items {
				val, err := toValue(fd, list.NewElement, item, fmt.Sprintf("%s[%d]", fpath, i))
				if err != nil {
					return err
				}
				list.Append(val)
			}
		case fd.Message() != nil:
			sub, ok := asMap(raw)
			if !ok {
				return fmt.Errorf("%w: %s expects a record, got %T", ErrFieldKind, fpath, raw)
			}
			if err := fill(m.Mutable(fd).Message(), sub, fpath); err != nil {
				return err
			}
		default:
			val, err := scalarValue(fd, raw, fpath)
			if err != nil {
				return err
			}
			m.Set(fd, val)
		}
	}
	return nil
}

// toValue convierte un elemento de lista o valor de map. newMsg provee el
// mensaje mutable cuando el elemento es un mensaje.
func toValue(fd protoreflect.FieldDescriptor, newMsg func() protoreflect.Value, raw any, path string) (protoreflect.Value, error) {
	if fd.Message() == nil {
		return scalarValue(fd, raw, path)
	}
	sub, ok := asMap(raw)
	if !ok {
		return protoreflect.Value{}, fmt.Errorf("%w: %s expects a record, got %T", ErrFieldKind, path, raw)
	}
	v := newMsg()
	if err := fill(v.Message(), sub, path); err != nil {
		return protoreflect.Value{}, err
	}
	return v, nil
}

func scalarValue(fd protoreflect.FieldDescriptor, raw any, path string) (protoreflect.Value, error) {
	rv := reflect.ValueOf(raw)
	bad := func() (protoreflect.Value, error) {
		return protoreflect.Value{}, fmt.Errorf("%w: %s is %s, got %T", ErrFieldKind, path, fd.Kind(), raw)
	}

	switch fd.Kind() {
	case protoreflect.StringKind:
		switch {
		case rv.Kind() == reflect.String:
			return protoreflect.ValueOfString(rv.String()), nil
		case isBytes(rv):
			return protoreflect.ValueOfString(string(rv.Bytes())), nil
		}
	case protoreflect.BytesKind:
		switch {
		case isBytes(rv):
			return protoreflect.ValueOfBytes(append([]byte{}, rv.Bytes()...)), nil
		case rv.Kind() == reflect.String:
			return protoreflect.ValueOfBytes([]byte(rv.String())), nil
		}
	case protoreflect.BoolKind:
		if rv.Kind() == reflect.Bool {
			return protoreflect.ValueOfBool(rv.Bool()), nil
		}
	case protoreflect.EnumKind:
		if rv.Kind() == reflect.String {
			ev := fd.Enum().Values().ByName(protoreflect.Name(rv.String()))
			if ev == nil {
				return bad()
			}
			return protoreflect.ValueOfEnum(ev.Number()), nil
		}
		if n, ok := asInt(rv); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if n, ok := asInt(rv); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if n, ok := asInt(rv); ok {
			return protoreflect.ValueOfInt64(n), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if n, ok := asInt(rv); ok && n >= 0 && n <= math.MaxUint32 {
			return protoreflect.ValueOfUint32(uint32(n)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if rv.Kind() >= reflect.Uint && rv.Kind() <= reflect.Uint64 {
			return protoreflect.ValueOfUint64(rv.Uint()), nil
		}
		if n, ok := asInt(rv); ok && n >= 0 {
			return protoreflect.ValueOfUint64(uint64(n)), nil
		}
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		if rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
			if fd.Kind() == protoreflect.FloatKind {
				return protoreflect.ValueOfFloat32(float32(rv.Float())), nil
			}
			return protoreflect.ValueOfFloat64(rv.Float()), nil
		}
	}
	return bad()
}

func isBytes(rv reflect.Value) bool {
	return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8
}

// asInt acepta cualquier entero y floats sin parte decimal (JSON) que
// entren en un int64.
func asInt(rv reflect.Value) (int64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u), true
		}
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f >= math.MinInt64 && f < math.MaxInt64 && f == math.Trunc(f) {
			return int64(f), true
		}
	}
	return 0, false
}

func asMap(raw any) (map[string]any, bool) {
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func asList(raw any) ([]any, bool) {
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice || isBytes(rv) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
