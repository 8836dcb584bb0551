package wasmhost

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	editorbridge "github.com/wippyai/editor-bridge"
	"github.com/wippyai/editor-bridge/errors"
)

// Bridge operations a guest may request.
const (
	opGetValue                 = "getValue"
	opGetJSONValue             = "getJsonValue"
	opSetValue                 = "setValue"
	opSetValueWithType         = "setValueWithType"
	opCallAction               = "callAction"
	opCallActionWithParameters = "callActionWithParameters"
	opCallEvent                = "callEvent"
	opClose                    = "close"
)

// Envelope encodings a guest may speak.
const (
	EnvelopeJSON = "json"
	EnvelopeCBOR = "cbor"
)

// envelope encodes requests and responses crossing guest memory. Values
// inside a response stay JSON text in either encoding; CBOR carries them
// as a byte string.
type envelope interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonEnvelope struct{}

func (jsonEnvelope) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonEnvelope) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborEnvelope struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func (e cborEnvelope) Marshal(v any) ([]byte, error)      { return e.enc.Marshal(v) }
func (e cborEnvelope) Unmarshal(data []byte, v any) error { return e.dec.Unmarshal(data, v) }

func newEnvelope(name string) (envelope, error) {
	switch name {
	case "", EnvelopeJSON:
		return jsonEnvelope{}, nil
	case EnvelopeCBOR:
		enc, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return nil, errors.Load("cbor encoder", err)
		}
		dec, err := cbor.DecOptions{}.DecMode()
		if err != nil {
			return nil, errors.Load("cbor decoder", err)
		}
		return cborEnvelope{enc: enc, dec: dec}, nil
	}
	return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
		Name("envelope").
		Value(name).
		Detail("unknown envelope encoding").
		Build()
}

// request is the envelope a guest passes to call and call_async.
type request struct {
	Op     string   `json:"op"`
	Handle uint32   `json:"handle"`
	Name   string   `json:"name,omitempty"`
	Value  string   `json:"value,omitempty"`
	Type   string   `json:"type,omitempty"`
	Params []string `json:"params,omitempty"`
}

// response answers a request. Eval results use the same shape, with Value
// holding the JSON text of the completion value.
type response struct {
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Found bool            `json:"found,omitempty"`
	Error string          `json:"error,omitempty"`
}

func failed(err error) response {
	return response{Error: err.Error()}
}

func valueResponse(v any) response {
	data, err := json.Marshal(v)
	if err != nil {
		return failed(errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "encode value"))
	}
	return response{OK: true, Value: data}
}

func decodeRequest(env envelope, data []byte) (request, error) {
	var req request
	if err := env.Unmarshal(data, &req); err != nil {
		return req, errors.Wrap(errors.PhaseHost, errors.KindDecode, err, "bridge request")
	}
	if req.Op == "" {
		return req, errors.InvalidInput(errors.PhaseHost, "bridge request has no op")
	}
	return req, nil
}

// serve performs a synchronous request against the handle's bridge.
func (h *Host) serve(ctx context.Context, req request) response {
	handle := editorbridge.Handle(req.Handle)
	bridge, err := h.bridge(handle, req.Op)
	if err != nil {
		return failed(err)
	}

	switch req.Op {
	case opGetValue:
		v, err := bridge.GetValue(handle, req.Name)
		if err != nil {
			return failed(err)
		}
		return valueResponse(v)
	case opGetJSONValue:
		v, err := bridge.GetJSONValue(handle, req.Name)
		if err != nil {
			return failed(err)
		}
		return valueResponse(v)
	case opSetValue:
		if err := bridge.SetValue(ctx, handle, req.Name, req.Value); err != nil {
			return failed(err)
		}
		return response{OK: true}
	case opSetValueWithType:
		if err := bridge.SetValueWithType(ctx, handle, req.Name, req.Value, req.Type); err != nil {
			return failed(err)
		}
		return response{OK: true}
	case opCallAction:
		found, err := bridge.CallAction(handle, req.Name)
		if err != nil {
			return failed(err)
		}
		return response{OK: true, Found: found}
	case opCallActionWithParameters:
		found, err := bridge.CallActionWithParameters(handle, req.Name, req.Params)
		if err != nil {
			return failed(err)
		}
		return response{OK: true, Found: found}
	case opClose:
		if err := bridge.Close(handle); err != nil {
			return failed(err)
		}
		return response{OK: true}
	case opCallEvent:
		return failed(errors.InvalidInput(errors.PhaseHost, "callEvent must use call_async"))
	}

	h.logger.Debug("unknown bridge op", zap.String("op", req.Op))
	return failed(errors.NotFound(errors.PhaseHost, "bridge op", req.Op))
}

// serveEvent performs a callEvent request. It may block on the control's
// queue, so it never runs while the guest is entered.
func (h *Host) serveEvent(ctx context.Context, req request) response {
	handle := editorbridge.Handle(req.Handle)
	if req.Op != opCallEvent {
		return failed(errors.InvalidInput(errors.PhaseHost, "call_async supports only callEvent"))
	}
	bridge, err := h.bridge(handle, req.Op)
	if err != nil {
		return failed(err)
	}
	result, err := bridge.CallEvent(ctx, handle, req.Name, req.Params)
	if err != nil {
		return failed(err)
	}
	return valueResponse(result)
}
