// Package enginev1 contains the messages of the cronet.engine.v1 API.
//
// Messages implement MarshalVT and UnmarshalVT for the protobuf wire format,
// which is what the vtprotobuf gRPC codec uses, and have JSON encodings
// matching the REST endpoints: snake_case field names, bodies as hex strings
// and headers as objects mapping names to their list of values.
//
// The types are maintained by hand next to proto/cronet/engine/v1/engine.proto
// and are not proto.Message implementations. Field numbers must match the
// proto file.
package enginev1

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type ProxyType int32

const (
	ProxyTypeHTTP ProxyType = iota
	ProxyTypeHTTPS
	ProxyTypeSOCKS5
)

func (t ProxyType) String() string {
	switch t {
	case ProxyTypeHTTP:
		return "HTTP"
	case ProxyTypeHTTPS:
		return "HTTPS"
	case ProxyTypeSOCKS5:
		return "SOCKS5"
	default:
		return fmt.Sprintf("ProxyType(%d)", int32(t))
	}
}

type ExecuteRequest struct {
	RequestId string           `json:"request_id"`
	Target    *TargetRequest   `json:"target"`
	Config    *ExecutionConfig `json:"config"`
}

type TargetRequest struct {
	Url     string  `json:"url"`
	Method  string  `json:"method"`
	Headers Headers `json:"headers"`
	Body    Bytes   `json:"body"`
}

type ExecutionConfig struct {
	FollowRedirects bool         `json:"follow_redirects"`
	Proxy           *ProxyConfig `json:"proxy"`
	// TimeoutMs bounds the execution of the request; zero uses the default
	// of the server.
	TimeoutMs int64 `json:"timeout_ms"`
}

type ProxyConfig struct {
	Type     ProxyType `json:"type"`
	Host     string    `json:"host"`
	Port     uint32    `json:"port"`
	Username string    `json:"username"`
	Password string    `json:"password"`
}

type ExecuteResponse struct {
	RequestId    string          `json:"request_id"`
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"error_message"`
	DurationMs   int64           `json:"duration_ms"`
	Response     *TargetResponse `json:"response"`
}

type TargetResponse struct {
	StatusCode int32   `json:"status_code"`
	Headers    Headers `json:"headers"`
	Body       Bytes   `json:"body"`
	Url        string  `json:"url"`
	Protocol   string  `json:"protocol"`
}

type VersionRequest struct{}

type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
	Build   string `json:"build"`
}

// Header is a header name with all its values.
type Header struct {
	Name   string
	Values []string
}

// Headers is an ordered list of headers. It is encoded as a JSON object,
// with members in the order of the list.
type Headers []Header

// Get returns the first value of the header with the given name.
func (h Headers) Get(name string) string {
	for _, header := range h {
		if header.Name == name && len(header.Values) > 0 {
			return header.Values[0]
		}
	}
	return ""
}

type headerValues struct {
	Values []string `json:"values"`
}

func (h Headers) MarshalJSON() ([]byte, error) {
	b := new(bytes.Buffer)
	b.WriteByte('{')
	for i, header := range h {
		if i > 0 {
			b.WriteByte(',')
		}
		name, err := json.Marshal(header.Name)
		if err != nil {
			return nil, err
		}
		values := header.Values
		if values == nil {
			values = []string{}
		}
		value, err := json.Marshal(headerValues{Values: values})
		if err != nil {
			return nil, err
		}
		b.Write(name)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (h *Headers) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*h = nil
		return nil
	}
	d := json.NewDecoder(bytes.NewReader(b))
	t, err := d.Token()
	if err != nil {
		return err
	}
	if t != json.Delim('{') {
		return fmt.Errorf("headers: expected JSON object but found %v", t)
	}
	var headers Headers
	for d.More() {
		t, err := d.Token()
		if err != nil {
			return err
		}
		name := t.(string)
		var v headerValues
		if err := d.Decode(&v); err != nil {
			return fmt.Errorf("headers: %s: %w", name, err)
		}
		headers = append(headers, Header{Name: name, Values: v.Values})
	}
	if _, err := d.Token(); err != nil {
		return err
	}
	*h = headers
	return nil
}

// Bytes is a byte slice encoded as a hexadecimal string in JSON.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("body is not a valid hexadecimal string: %w", err)
	}
	*b = v
	return nil
}
