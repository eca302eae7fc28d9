package cli

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/entcache/legacy"
)

func write(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// printable converts decoded values into plain maps, lists and strings that
// render the same in YAML and JSON.
func printable(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x
	case []byte:
		return "base64:" + base64.StdEncoding.EncodeToString(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case legacy.Key:
		return x.PathString()
	case *legacy.Key:
		if x == nil {
			return nil
		}
		return x.PathString()
	case legacy.BlobKey:
		return "blobkey:" + string(x)
	case legacy.GeoPoint:
		return map[string]any{"lat": x.Lat, "lng": x.Lng}
	case legacy.User:
		return map[string]any{"email": x.Email, "auth_domain": x.AuthDomain}
	case legacy.PropertyMap:
		return printableMap(x)
	case map[string]any:
		return printableMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = printable(e)
		}
		return out
	}
	return v
}

func printableMap(m map[string]any) map[string]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]any, len(m))
	for _, k := range keys {
		out[k] = printable(m[k])
	}
	return out
}
