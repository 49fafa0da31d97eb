package codec

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
)

func encodeYAML(doc *stores.Document, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if opts.Metadata {
		buf.WriteString("# Exported by envswitch\n")
	}

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(toEnvelope(doc, opts)); err != nil {
		return nil, errdefs.Wrap(errdefs.KindFormatError, "failed to encode YAML", err).
			WithOperation("encode")
	}
	if err := enc.Close(); err != nil {
		return nil, errdefs.Wrap(errdefs.KindFormatError, "failed to encode YAML", err).
			WithOperation("encode")
	}
	return buf.Bytes(), nil
}

func decodeYAML(data []byte, opts DecodeOptions) (*stores.Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, yamlError(err)
	}
	if len(root.Content) == 0 {
		return stores.NewDocument(), nil
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, errdefs.New(errdefs.KindFormatError, "YAML document must be a mapping").
			WithLine(top.Line).
			WithOperation("decode")
	}

	if !hasKey(top, "configs") {
		return decodeFlatYAML(top, opts)
	}

	env := &envelope{}
	if err := top.Decode(env); err != nil {
		return nil, yamlError(err)
	}
	return fromEnvelope(env)
}

// decodeFlatYAML accepts a mapping of KEY: scalar. Scalars keep their
// literal text, so PORT: 0080 stays "0080".
func decodeFlatYAML(top *yaml.Node, opts DecodeOptions) (*stores.Document, error) {
	vars := make(map[string]string, len(top.Content)/2)
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		if value.Kind == yaml.AliasNode && value.Alias != nil {
			value = value.Alias
		}
		if value.Kind != yaml.ScalarNode {
			return nil, errdefs.Newf(errdefs.KindFormatError, "value of %q must be a scalar", key.Value).
				WithField(key.Value).
				WithLine(value.Line).
				WithOperation("decode")
		}
		if value.Tag == "!!null" {
			vars[key.Value] = ""
			continue
		}
		vars[key.Value] = value.Value
	}
	return flatDocument(vars, opts), nil
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

func yamlError(err error) error {
	return errdefs.Wrap(errdefs.KindFormatError, "invalid YAML", err).
		WithLine(lineFromMessage(err.Error())).
		WithOperation("decode")
}
