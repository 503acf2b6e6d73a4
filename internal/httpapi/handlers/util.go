package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
)

const maxFormBody = 10 << 20

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close() //nolint:errcheck
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func isJSON(r *http.Request) bool {
	return mediaType(r) == "application/json"
}

// requestParams reads string parameters from a JSON object body or from the
// query string and form body, the way the token endpoint accepts them.
// Values are used verbatim; body values win over the query string.
func requestParams(r *http.Request) (map[string]string, error) {
	params := map[string]string{}
	if isJSON(r) {
		defer r.Body.Close() //nolint:errcheck
		raw := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				params[k] = s
			}
		}
		for k, vs := range r.URL.Query() {
			if _, ok := params[k]; !ok && len(vs) > 0 {
				params[k] = vs[0]
			}
		}
		return params, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for k := range r.Form {
		params[k] = r.Form.Get(k)
	}
	// ParseForm only reads bodies of POST, PUT and PATCH.
	if r.Method == http.MethodDelete && mediaType(r) == "application/x-www-form-urlencoded" {
		defer r.Body.Close() //nolint:errcheck
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxFormBody))
		if err != nil {
			return nil, err
		}
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, err
		}
		for k := range values {
			params[k] = values.Get(k)
		}
	}
	return params, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string, details map[string]any) {
	body := map[string]any{
		"error":             code,
		"error_description": message,
	}
	if details != nil {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
