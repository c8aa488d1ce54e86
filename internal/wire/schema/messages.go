package schema

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Package protobuf de la API de usuario del config server.
const protoPackage = "fleet"

// EntityKind es el segmento de ruta bajo el que viven todas las acciones de usuario.
const EntityKind = "User"

// Acciones conocidas de la API de usuario.
const (
	ListAgentGroups                = "ListAgentGroups"
	GetAgentGroup                  = "GetAgentGroup"
	CreateAgentGroup               = "CreateAgentGroup"
	UpdateAgentGroup               = "UpdateAgentGroup"
	DeleteAgentGroup               = "DeleteAgentGroup"
	ListAgents                     = "ListAgents"
	ListConfigs                    = "ListConfigs"
	GetConfig                      = "GetConfig"
	CreateConfig                   = "CreateConfig"
	UpdateConfig                   = "UpdateConfig"
	DeleteConfig                   = "DeleteConfig"
	ApplyConfigToAgentGroup        = "ApplyConfigToAgentGroup"
	RemoveConfigFromAgentGroup     = "RemoveConfigFromAgentGroup"
	GetAppliedConfigsForAgentGroup = "GetAppliedConfigsForAgentGroup"
	GetAppliedAgentGroups          = "GetAppliedAgentGroups"
)

// RequestType retorna el nombre del mensaje de request de una acción.
func RequestType(action string) string { return action + "Request" }

// ResponseType retorna el nombre del mensaje de response de una acción.
func ResponseType(action string) string { return action + "Response" }

// defaultOpaque son los campos cuyos valores legítimos pueden parecer base64
// y nunca deben re-decodificarse.
var defaultOpaque = []string{"detail", "opaque", "value", "extras"}

type actionSpec struct {
	name     string
	request  []*descriptorpb.FieldDescriptorProto
	response []*descriptorpb.FieldDescriptorProto
}

var actionSpecs = []actionSpec{
	{CreateAgentGroup, fields(msgField("agentGroup", 2, "AgentGroupTag")), nil},
	{UpdateAgentGroup, fields(msgField("agentGroup", 2, "AgentGroupTag")), nil},
	{DeleteAgentGroup, fields(scalar("groupName", 2, tString)), nil},
	{GetAgentGroup, fields(scalar("groupName", 2, tString)), fields(msgField("agentGroup", 3, "AgentGroupTag"))},
	{ListAgentGroups, nil, fields(repeated(msgField("agentGroups", 4, "AgentGroupTag")))},
	{CreateConfig, fields(msgField("configDetail", 2, "ConfigDetail")), nil},
	{UpdateConfig, fields(msgField("configDetail", 2, "ConfigDetail")), nil},
	{DeleteConfig, fields(scalar("configName", 2, tString)), nil},
	{GetConfig, fields(scalar("configName", 2, tString)), fields(msgField("configDetail", 3, "ConfigDetail"))},
	{ListConfigs, nil, fields(repeated(msgField("configDetails", 3, "ConfigDetail")))},
	{ApplyConfigToAgentGroup, fields(scalar("configName", 2, tString), scalar("groupName", 3, tString)), nil},
	{RemoveConfigFromAgentGroup, fields(scalar("configName", 2, tString), scalar("groupName", 3, tString)), nil},
	{GetAppliedConfigsForAgentGroup, fields(scalar("groupName", 2, tString)), fields(repeated(scalar("configNames", 4, tString)))},
	{GetAppliedAgentGroups, fields(scalar("configName", 2, tString)), fields(repeated(scalar("agentGroupNames", 3, tString)))},
	{ListAgents, fields(scalar("groupName", 2, tString)), fields(repeated(msgField("agents", 3, "Agent")))},
}

const (
	tString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tBytes  = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	tInt32  = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
	tUint64 = descriptorpb.FieldDescriptorProto_TYPE_UINT64
)

// commonTypes son los mensajes compartidos por varias acciones.
func commonTypes() []*descriptorpb.DescriptorProto {
	return []*descriptorpb.DescriptorProto{
		message("AgentGroupTag",
			scalar("name", 1, tString),
			scalar("value", 2, tString),
		),
		message("ConfigDetail",
			scalar("name", 1, tString),
			scalar("version", 2, tInt64),
			scalar("detail", 3, tBytes),
		),
		message("CommonResponse",
			scalar("status", 1, tInt32),
			scalar("errorMessage", 2, tBytes),
		),
		{
			Name: proto.String("AgentAttributes"),
			Field: []*descriptorpb.FieldDescriptorProto{
				scalar("version", 1, tBytes),
				scalar("ip", 2, tBytes),
				scalar("hostname", 3, tBytes),
				repeated(msgField("extras", 100, "AgentAttributes.ExtrasEntry")),
			},
			NestedType: []*descriptorpb.DescriptorProto{{
				Name: proto.String("ExtrasEntry"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("key", 1, tString),
					scalar("value", 2, tBytes),
				},
				Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
			}},
		},
		message("Agent",
			scalar("capabilities", 1, tUint64),
			scalar("instanceId", 2, tBytes),
			scalar("agentType", 3, tString),
			msgField("attributes", 4, "AgentAttributes"),
			scalar("runningStatus", 5, tString),
			scalar("startupTime", 6, tInt64),
			scalar("flags", 7, tUint64),
			scalar("opaque", 8, tBytes),
		),
	}
}

// actionTypes arma el par Request/Response de cada acción. Todo request lleva
// requestId (1); todo response lleva requestId (1) y commonResponse (2).
func actionTypes() []*descriptorpb.DescriptorProto {
	out := make([]*descriptorpb.DescriptorProto, 0, 2*len(actionSpecs))
	for _, a := range actionSpecs {
		req := append(fields(scalar("requestId", 1, tBytes)), a.request...)
		resp := append(fields(
			scalar("requestId", 1, tBytes),
			msgField("commonResponse", 2, "CommonResponse"),
		), a.response...)
		out = append(out, message(RequestType(a.name), req...), message(ResponseType(a.name), resp...))
	}
	return out
}

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String("fleet/user.proto"),
		Package:     proto.String(protoPackage),
		Syntax:      proto.String("proto3"),
		MessageType: append(commonTypes(), actionTypes()...),
	}
}

func message(name string, f ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: f}
}

func fields(f ...*descriptorpb.FieldDescriptorProto) []*descriptorpb.FieldDescriptorProto {
	return f
}

func scalar(name string, number int32, t descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Type:   t.Enum(),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
}

func msgField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String("." + protoPackage + "." + typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}
