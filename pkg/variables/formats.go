package variables

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

// Format identifies a variables file encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatDotenv Format = "dotenv"
	FormatHCL    Format = "hcl"
	// FormatUnknown is tried as JSON first, then as YAML.
	FormatUnknown Format = ""
)

// DetectFormat selects a format from the file extension.
func DetectFormat(path string) Format {
	base := strings.ToLower(filepath.Base(path))
	if base == ".env" || strings.HasSuffix(base, ".env") {
		return FormatDotenv
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".hcl", ".tfvars":
		return FormatHCL
	default:
		return FormatUnknown
	}
}

// Parse decodes variables content in the given format.
func Parse(data []byte, format Format, filename string) (Map, error) {
	switch format {
	case FormatJSON:
		return ParseJSON(data)
	case FormatYAML:
		return ParseYAML(data)
	case FormatDotenv:
		return ParseDotenv(data)
	case FormatHCL:
		return ParseHCL(data, filename)
	default:
		vars, jsonErr := ParseJSON(data)
		if jsonErr == nil {
			return vars, nil
		}
		vars, yamlErr := ParseYAML(data)
		if yamlErr == nil {
			return vars, nil
		}
		return nil, fmt.Errorf("content is neither JSON (%v) nor YAML (%v)", jsonErr, yamlErr)
	}
}

// ParseJSON decodes a flat JSON object. String values are taken verbatim,
// any other value keeps its JSON text.
func ParseJSON(data []byte) (Map, error) {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	vars := make(Map, len(raw))
	for k, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			vars[k] = s
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, msg); err != nil {
			return nil, fmt.Errorf("value of %q: %w", k, err)
		}
		vars[k] = buf.String()
	}
	return vars, nil
}

// ParseYAML decodes a YAML mapping. Scalars are stringified; sequences and
// mappings are serialized as JSON text.
func ParseYAML(data []byte) (Map, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	vars := make(Map, len(doc))
	for k, v := range doc {
		s, err := stringify(v)
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", k, err)
		}
		vars[k] = s
	}
	return vars, nil
}

// ParseDotenv decodes KEY=VALUE lines.
func ParseDotenv(data []byte) (Map, error) {
	env, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return Map(env), nil
}

// ParseHCL decodes top-level HCL attributes. Attribute expressions must be
// constant; non-string values are serialized as JSON text.
func ParseHCL(data []byte, filename string) (Map, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	vars := make(Map, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		s, err := ctyString(val)
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", name, err)
		}
		vars[name] = s
	}
	return vars, nil
}

func ctyString(val cty.Value) (string, error) {
	if val.IsNull() {
		return "null", nil
	}
	if !val.IsWhollyKnown() {
		return "", fmt.Errorf("value is not known")
	}

	ty := val.Type()
	switch {
	case ty.Equals(cty.String):
		return val.AsString(), nil
	case ty.Equals(cty.Number):
		return val.AsBigFloat().Text('f', -1), nil
	case ty.Equals(cty.Bool):
		return strconv.FormatBool(val.True()), nil
	}

	out, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func stringify(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case *big.Int:
		return t.String(), nil
	}

	out, err := json.Marshal(normalize(v))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// normalize converts YAML maps with non-string keys into JSON-encodable maps.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
