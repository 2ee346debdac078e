
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Armin-kho/doviz-board/internal/utils"
)

// UserAgent is sent to every upstream; some of them reject Go's default.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// HTTPGet performs a context-bound GET and returns the body of a 200 response.
func HTTPGet(ctx context.Context, client *http.Client, urlStr string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, snippet(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// DecodeJSON decodes body into v with json.Number for numeric values.
func DecodeJSON(body []byte, v any, what string) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s decode: %w (%s)", what, err, snippet(body))
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// ToFloat accepts JSON numbers and numeric strings in either separator style.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err == nil {
			return f, true
		}
	case string:
		return utils.ParsePrice(t)
	}
	return 0, false
}

// field reads m[key] as a float; missing or unparsable yields 0.
func field(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	f, ok := ToFloat(m[key])
	if !ok {
		return 0
	}
	return f
}

func object(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	o, _ := m[key].(map[string]any)
	return o
}
