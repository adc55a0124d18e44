package checkpoint

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

// Tuple marks a fixed-size, order-significant value for round-trip
// through the wire format (e.g. a (channel, value) pending write
// pair), the Go counterpart of Python's tuple -- a type JSON has no
// native representation for, so it needs the same explicit tag the
// rest of this adapter uses for messages/Send/datetime/uuid.
type Tuple []any

// SendValue is the wire shape of an engine.Send: a node name plus an
// opaque argument, tagged so it survives a checkpoint round-trip
// instead of silently degrading to a plain map.
type SendValue struct {
	Node string `json:"node"`
	Arg  any    `json:"arg"`
}

const (
	typeKey = "__type__"
	dataKey = "data"

	tagMessageList = "lc_message_list"
	tagSend        = "Send"
	tagDatetime    = "datetime"
	tagUUID        = "uuid"
	tagTuple       = "tuple"
	tagStruct      = "struct"
)

// ToJSONable recursively converts v into a tree of map[string]any /
// []any / primitives that encoding/json can marshal without loss,
// tagging the types JSON can't natively express. This is the Go
// counterpart of the Python adapter's _to_jsonable: same tag
// vocabulary (__type__/data), same conversions (message lists, Send,
// datetime, uuid, tuple, arbitrary structs), adapted to Go's static
// type system (no isinstance scanning -- a type switch plus a
// reflect-based struct fallback).
func ToJSONable(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []state.Message:
		items := make([]any, len(x))
		for i, m := range x {
			enc, err := ToJSONable(m)
			if err != nil {
				return nil, err
			}
			items[i] = enc
		}
		return map[string]any{typeKey: tagMessageList, dataKey: items}, nil
	case SendValue:
		arg, err := ToJSONable(x.Arg)
		if err != nil {
			return nil, err
		}
		return map[string]any{typeKey: tagSend, dataKey: map[string]any{"node": x.Node, "arg": arg}}, nil
	case time.Time:
		return map[string]any{typeKey: tagDatetime, dataKey: x.Format(time.RFC3339Nano)}, nil
	case uuid.UUID:
		return map[string]any{typeKey: tagUUID, dataKey: x.String()}, nil
	case Tuple:
		items := make([]any, len(x))
		for i, item := range x {
			enc, err := ToJSONable(item)
			if err != nil {
				return nil, err
			}
			items[i] = enc
		}
		return map[string]any{typeKey: tagTuple, dataKey: items}, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			enc, err := ToJSONable(val)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			enc, err := ToJSONable(val)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case string, bool, int, int32, int64, float32, float64:
		return x, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Struct:
		return structToJSONable(rv)
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return ToJSONable(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			enc, err := ToJSONable(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return nil, fmt.Errorf("checkpoint: value of type %T is not JSON-safe and has no tagged conversion", v)
}

func structToJSONable(rv reflect.Value) (any, error) {
	t := rv.Type()
	data := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag := strings.Split(f.Tag.Get("json"), ",")[0]; tag == "-" {
			continue
		} else if tag != "" {
			name = tag
		}
		enc, err := ToJSONable(rv.Field(i).Interface())
		if err != nil {
			return nil, err
		}
		data[name] = enc
	}
	return map[string]any{typeKey: tagStruct, "class": t.Name(), dataKey: data}, nil
}

// FromJSONable reverses ToJSONable for the tags this adapter produces.
// Values with no __type__ tag pass through unchanged (plain JSON
// scalars/maps/lists).
func FromJSONable(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		if list, ok := v.([]any); ok {
			out := make([]any, len(list))
			for i, item := range list {
				out[i] = FromJSONable(item)
			}
			return out
		}
		return v
	}
	tag, _ := m[typeKey].(string)
	switch tag {
	case tagMessageList:
		items, _ := m[dataKey].([]any)
		out := make([]state.Message, 0, len(items))
		for _, item := range items {
			if msg, ok := decodeMessage(item); ok {
				out = append(out, msg)
			}
		}
		return out
	case tagSend:
		d, _ := m[dataKey].(map[string]any)
		return SendValue{Node: fmt.Sprint(d["node"]), Arg: FromJSONable(d["arg"])}
	case tagDatetime:
		s, _ := m[dataKey].(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return s
		}
		return t
	case tagUUID:
		s, _ := m[dataKey].(string)
		id, err := uuid.Parse(s)
		if err != nil {
			return s
		}
		return id
	case tagTuple:
		items, _ := m[dataKey].([]any)
		out := make(Tuple, len(items))
		for i, item := range items {
			out[i] = FromJSONable(item)
		}
		return out
	case tagStruct:
		// Generic structs decode back to a plain map; callers that need
		// a concrete type reconstruct it from the "class" discriminator
		// and the nested data map themselves.
		d, _ := m[dataKey].(map[string]any)
		out := make(map[string]any, len(d))
		for k, val := range d {
			out[k] = FromJSONable(val)
		}
		return out
	default:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = FromJSONable(val)
		}
		return out
	}
}

func decodeMessage(v any) (state.Message, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return state.Message{}, false
	}
	if tag, _ := m[typeKey].(string); tag == tagStruct {
		if d, ok := m[dataKey].(map[string]any); ok {
			m = d
		}
	}
	msg := state.Message{}
	if id, ok := m["id"].(string); ok {
		msg.ID = id
	}
	if role, ok := m["role"].(string); ok {
		msg.Role = state.Role(role)
	}
	if text, ok := m["text"].(string); ok {
		msg.Text = text
	}
	if toolName, ok := m["tool_name"].(string); ok {
		msg.ToolName = toolName
	}
	if toolCallID, ok := m["tool_call_id"].(string); ok {
		msg.ToolCallID = toolCallID
	}
	return msg, true
}
