package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
)

func encodeJSON(doc *stores.Document, opts EncodeOptions) ([]byte, error) {
	env := toEnvelope(doc, opts)

	var (
		data []byte
		err  error
	)
	if opts.Pretty {
		data, err = json.MarshalIndent(env, "", "  ")
	} else {
		data, err = json.Marshal(env)
	}
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindFormatError, "failed to encode JSON", err).
			WithOperation("encode")
	}
	return append(data, '\n'), nil
}

func decodeJSON(data []byte, opts DecodeOptions) (*stores.Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, jsonError(data, err)
	}

	if len(top) == 0 {
		return stores.NewDocument(), nil
	}
	if _, ok := top["configs"]; !ok {
		return decodeFlatJSON(data, opts)
	}

	env := &envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, jsonError(data, err)
	}
	return fromEnvelope(env)
}

// decodeFlatJSON accepts {"KEY": "value", ...}. Numbers and booleans are
// converted to their literal text.
func decodeFlatJSON(data []byte, opts DecodeOptions) (*stores.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, jsonError(data, err)
	}

	vars := make(map[string]string, len(raw))
	for _, key := range sortedKeys(raw) {
		switch v := raw[key].(type) {
		case string:
			vars[key] = v
		case json.Number:
			vars[key] = v.String()
		case bool:
			vars[key] = strconv.FormatBool(v)
		case nil:
			vars[key] = ""
		default:
			return nil, errdefs.Newf(errdefs.KindFormatError,
				"value of %q must be a string, number or boolean", key).
				WithField(key).
				WithOperation("decode")
		}
	}
	return flatDocument(vars, opts), nil
}

func jsonError(data []byte, err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		offset    int64 = -1
	)
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}

	e := errdefs.Wrap(errdefs.KindFormatError, "invalid JSON", err).WithOperation("decode")
	if typeErr != nil && typeErr.Field != "" {
		e = e.WithField(typeErr.Field)
	}
	if offset >= 0 {
		e = e.WithLine(lineAt(data, offset))
	}
	return e
}

// lineAt returns the 1-based line containing byte offset.
func lineAt(data []byte, offset int64) int {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte{'\n'}) + 1
}
