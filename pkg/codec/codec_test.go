package codec

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
)

func testDocument() *stores.Document {
	created := time.Date(2025, 1, 15, 9, 30, 0, 123456789, time.UTC)
	doc := stores.NewDocument()
	doc.Put(&stores.Configuration{
		Alias: "dev",
		Variables: map[string]string{
			"API_URL":  "http://localhost:8080",
			"GREETING": "it's \"quoted\" $HOME `cmd`",
			"MULTI":    "line1\nline2\ttab \\ end",
			"EMPTY":    "",
		},
		Description: "Local development",
		CreatedAt:   created,
		UpdatedAt:   created.Add(90 * time.Minute),
	})
	doc.Put(&stores.Configuration{
		Alias:     "prod",
		Variables: map[string]string{"API_URL": "https://api.example.com", "REPLICAS": "3"},
		CreatedAt: created,
		UpdatedAt: created,
	})
	doc.SetActive("dev")
	return doc
}

func TestJSONRoundTripWithMetadata(t *testing.T) {
	doc := testDocument()

	for _, pretty := range []bool{false, true} {
		res, err := Encode(doc, FormatJSON, EncodeOptions{Metadata: true, Pretty: pretty})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Configurations)
		assert.Equal(t, 6, res.Variables)
		assert.Empty(t, res.Collisions)

		decoded, err := Decode(res.Data, FormatJSON, DecodeOptions{})
		require.NoError(t, err)
		assert.Equal(t, doc.Configs, decoded.Configs)
		assert.Equal(t, "dev", decoded.Active())
	}
}

func TestJSONWithoutMetadataDropsDescriptionAndTimestamps(t *testing.T) {
	res, err := Encode(testDocument(), FormatJSON, EncodeOptions{})
	require.NoError(t, err)
	assert.NotContains(t, string(res.Data), "Local development")
	assert.NotContains(t, string(res.Data), "created_at")
	assert.NotContains(t, string(res.Data), "active_config")

	decoded, err := Decode(res.Data, FormatJSON, DecodeOptions{})
	require.NoError(t, err)
	dev := decoded.Configs["dev"]
	require.NotNil(t, dev)
	assert.Empty(t, dev.Description)
	assert.True(t, dev.CreatedAt.IsZero())
	assert.Equal(t, testDocument().Configs["dev"].Variables, dev.Variables)
	assert.Nil(t, decoded.ActiveConfig)
}

func TestJSONPrettyIndent(t *testing.T) {
	res, err := Encode(testDocument(), FormatJSON, EncodeOptions{Pretty: true})
	require.NoError(t, err)
	assert.Contains(t, string(res.Data), "\n  \"configs\": {")
	assert.True(t, strings.HasSuffix(string(res.Data), "}\n"))
}

func TestYAMLRoundTrip(t *testing.T) {
	doc := testDocument()

	res, err := Encode(doc, FormatYAML, EncodeOptions{Metadata: true})
	require.NoError(t, err)
	assert.Contains(t, string(res.Data), "configs:")

	decoded, err := Decode(res.Data, FormatYAML, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, doc.Configs, decoded.Configs)
}

func TestENVRoundTripWithMetadata(t *testing.T) {
	doc := testDocument()

	res, err := Encode(doc, FormatENV, EncodeOptions{Metadata: true})
	require.NoError(t, err)
	out := string(res.Data)
	assert.Contains(t, out, "# Configuration: dev\n")
	assert.Contains(t, out, "# Description: Local development\n")
	assert.Contains(t, out, "# Configuration: prod\n")
	assert.Contains(t, out, "API_URL=http://localhost:8080\n")

	decoded, err := Decode(res.Data, FormatENV, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, doc.Configs, decoded.Configs)
}

func TestENVFlattenedUnionReportsCollisions(t *testing.T) {
	res, err := Encode(testDocument(), FormatENV, EncodeOptions{})
	require.NoError(t, err)

	out := string(res.Data)
	assert.NotContains(t, out, "#")
	// prod sorts after dev, so its value wins.
	assert.Contains(t, out, "API_URL=https://api.example.com\n")
	assert.NotContains(t, out, "localhost")
	assert.Equal(t, []Collision{{Key: "API_URL", Aliases: []string{"dev", "prod"}}}, res.Collisions)

	decoded, err := Decode(res.Data, FormatENV, DecodeOptions{DefaultAlias: "merged"})
	require.NoError(t, err)
	require.Equal(t, []string{"merged"}, decoded.Aliases())
	assert.Len(t, decoded.Configs["merged"].Variables, 5)
}

func TestENVSingleConfigurationHasNoCollisions(t *testing.T) {
	doc := testDocument()
	doc.Remove("prod")

	res, err := Encode(doc, FormatENV, EncodeOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Collisions)

	lines := strings.Split(strings.TrimSuffix(string(res.Data), "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "API_URL=http://localhost:8080", lines[0])
	assert.Equal(t, "EMPTY=", lines[1])
}

func TestENVValueQuotingRoundTrip(t *testing.T) {
	values := []string{
		"",
		"plain",
		"with space",
		"  padded  ",
		`back\slash`,
		`"double"`,
		"'single'",
		"it's",
		"$VAR and ${VAR}",
		"`backtick`",
		"new\nline",
		"carriage\r\nreturn",
		"tab\there",
		"# not a comment",
		"a=b=c",
		"unicode ✓ ünïcödé",
	}

	for _, v := range values {
		t.Run(v, func(t *testing.T) {
			doc := stores.NewDocument()
			doc.Put(&stores.Configuration{Alias: "dev", Variables: map[string]string{"KEY": v}})

			res, err := Encode(doc, FormatENV, EncodeOptions{})
			require.NoError(t, err)
			assert.NotContains(t, strings.TrimSuffix(string(res.Data), "\n"), "\n")

			decoded, err := Decode(res.Data, FormatENV, DecodeOptions{})
			require.NoError(t, err)
			assert.Equal(t, v, decoded.Configs[DefaultAlias].Variables["KEY"])
		})
	}
}

func TestENVEncodeRejectsUnrepresentableValue(t *testing.T) {
	for _, v := range []string{"trailing backslash\\", "multi\nline\\"} {
		doc := stores.NewDocument()
		doc.Put(&stores.Configuration{Alias: "dev", Variables: map[string]string{"OK": "1", "BAD": v}})

		_, err := Encode(doc, FormatENV, EncodeOptions{Metadata: true})
		var e *errdefs.Error
		require.ErrorAs(t, err, &e, v)
		assert.Equal(t, errdefs.KindFormatError, e.Kind)
		assert.Equal(t, "BAD", e.Field)
		assert.Equal(t, "dev", e.Alias)

		_, err = Encode(doc, FormatJSON, EncodeOptions{})
		assert.NoError(t, err)
	}
}

func TestENVDecodeCommonSyntax(t *testing.T) {
	input := strings.Join([]string{
		"# plain comment",
		"export DATABASE_URL=postgres://localhost/db",
		"  SPACED = value  ",
		"SINGLE='literal $HOME \\n'",
		`DOUBLE="escaped \"quote\" here" # trailing comment`,
		"EMPTY=",
		"",
	}, "\r\n")

	doc, err := Decode([]byte(input), FormatENV, DecodeOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{DefaultAlias}, doc.Aliases())
	assert.Equal(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/db",
		"SPACED":       "value",
		"SINGLE":       `literal $HOME \n`,
		"DOUBLE":       `escaped "quote" here`,
		"EMPTY":        "",
	}, doc.Configs[DefaultAlias].Variables)
}

func TestENVDecodeMarkersSplitConfigurations(t *testing.T) {
	input := `LOOSE=1

# Configuration: staging
# Description: Staging cluster
HOST=staging.internal

# Configuration: empty

# Configuration: staging
PORT=8443
`
	doc, err := Decode([]byte(input), FormatENV, DecodeOptions{DefaultAlias: "base"})
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "empty", "staging"}, doc.Aliases())
	assert.Equal(t, map[string]string{"LOOSE": "1"}, doc.Configs["base"].Variables)
	assert.Empty(t, doc.Configs["empty"].Variables)
	assert.Equal(t, "Staging cluster", doc.Configs["staging"].Description)
	assert.Equal(t, map[string]string{"HOST": "staging.internal", "PORT": "8443"}, doc.Configs["staging"].Variables)
}

func TestENVDecodeErrorsCarryLineNumbers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"missing equals", "A=1\nB=2\nnot a pair\n", 3},
		{"empty key", "A=1\n=value\n", 2},
		{"unterminated double", "A=\"open\n", 1},
		{"unterminated single", "\n\nA='open\n", 3},
		{"garbage after quote", "A=\"x\" y\n", 1},
		{"nameless marker", "# Configuration:\nA=1\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input), FormatENV, DecodeOptions{})
			require.Error(t, err)

			var e *errdefs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, errdefs.KindFormatError, e.Kind)
			assert.Equal(t, tt.line, e.Line)
			assert.Contains(t, err.Error(), "line=")
		})
	}
}

func TestJSONDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("{\n  \"configs\": {\n    \"dev\": [1]\n  }\n}\n"), FormatJSON, DecodeOptions{})
	require.Error(t, err)
	var e *errdefs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errdefs.KindFormatError, e.Kind)
	assert.Equal(t, 3, e.Line)

	_, err = Decode([]byte("{\n  \"configs\": {\n"), FormatJSON, DecodeOptions{})
	assert.Equal(t, errdefs.KindFormatError, errdefs.KindOf(err))

	_, err = Decode([]byte(`{"configs": {"dev": {"alias": "prod", "variables": {}}}}`), FormatJSON, DecodeOptions{})
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "dev", e.Alias)
}

func TestFlatJSONAndYAMLDecode(t *testing.T) {
	doc, err := Decode([]byte(`{"PORT": 8080, "DEBUG": true, "NAME": "svc", "UNSET": null}`), FormatJSON, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PORT": "8080", "DEBUG": "true", "NAME": "svc", "UNSET": ""},
		doc.Configs[DefaultAlias].Variables)

	_, err = Decode([]byte(`{"NESTED": {"a": 1}}`), FormatJSON, DecodeOptions{})
	assert.Equal(t, errdefs.KindFormatError, errdefs.KindOf(err))

	doc, err = Decode([]byte("PORT: 0080\nDEBUG: true\nEMPTY:\n"), FormatYAML, DecodeOptions{DefaultAlias: "svc"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PORT": "0080", "DEBUG": "true", "EMPTY": ""}, doc.Configs["svc"].Variables)

	_, err = Decode([]byte("A: 1\nLIST:\n  - x\n"), FormatYAML, DecodeOptions{})
	var e *errdefs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "LIST", e.Field)
	assert.Equal(t, 3, e.Line)
}

func TestYAMLDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("configs:\n  dev:\n    variables: [\n"), FormatYAML, DecodeOptions{})
	assert.Equal(t, errdefs.KindFormatError, errdefs.KindOf(err))

	_, err = Decode([]byte("- a\n- b\n"), FormatYAML, DecodeOptions{})
	var e *errdefs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 1, e.Line)
}

func TestEmptyInputsDecodeToEmptyDocument(t *testing.T) {
	for _, tt := range []struct {
		format Format
		input  string
	}{
		{FormatJSON, "{}"},
		{FormatYAML, ""},
		{FormatENV, "# only comments\n\n"},
	} {
		doc, err := Decode([]byte(tt.input), tt.format, DecodeOptions{})
		require.NoError(t, err, tt.format.String())
		assert.Empty(t, doc.Configs, tt.format.String())
	}
}

func TestUnknownFormat(t *testing.T) {
	_, err := Encode(testDocument(), FormatUnknown, EncodeOptions{})
	assert.Equal(t, errdefs.KindUnknownFormat, errdefs.KindOf(err))

	_, err = Decode([]byte("{}"), Format(42), DecodeOptions{})
	assert.Equal(t, errdefs.KindUnknownFormat, errdefs.KindOf(err))
}
