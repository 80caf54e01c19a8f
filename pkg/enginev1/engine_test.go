package enginev1_test

import (
	"encoding/json"
	"testing"

	"github.com/stealthrocket/cloak/internal/assert"
	"github.com/stealthrocket/cloak/pkg/enginev1"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestExecuteRequestJSON(t *testing.T) {
	const doc = `{
		"request_id": "req-1",
		"target": {
			"url": "https://example.com/",
			"method": "POST",
			"headers": {
				"X-B": {"values": ["2"]},
				"X-A": {"values": ["1", "3"]}
			},
			"body": "68656c6c6f"
		},
		"config": {
			"follow_redirects": false,
			"proxy": {"type": 2, "host": "127.0.0.1", "port": 1080},
			"timeout_ms": 1500
		}
	}`

	var req enginev1.ExecuteRequest
	assert.OK(t, json.Unmarshal([]byte(doc), &req))
	assert.DeepEqual(t, req, enginev1.ExecuteRequest{
		RequestId: "req-1",
		Target: &enginev1.TargetRequest{
			Url:    "https://example.com/",
			Method: "POST",
			Headers: enginev1.Headers{
				{Name: "X-B", Values: []string{"2"}},
				{Name: "X-A", Values: []string{"1", "3"}},
			},
			Body: enginev1.Bytes("hello"),
		},
		Config: &enginev1.ExecutionConfig{
			Proxy: &enginev1.ProxyConfig{
				Type: enginev1.ProxyTypeSOCKS5,
				Host: "127.0.0.1",
				Port: 1080,
			},
			TimeoutMs: 1500,
		},
	})
}

func TestExecuteRequestMissingTarget(t *testing.T) {
	var req enginev1.ExecuteRequest
	assert.OK(t, json.Unmarshal([]byte(`{"request_id":"abc"}`), &req))
	assert.Equal(t, req.RequestId, "abc")
	assert.True(t, req.Target == nil, "target must be nil")
	assert.True(t, req.Config == nil, "config must be nil")
}

func TestInvalidHexBody(t *testing.T) {
	var req enginev1.TargetRequest
	err := json.Unmarshal([]byte(`{"body":"xyz"}`), &req)
	assert.True(t, err != nil, "expected an error decoding a non-hexadecimal body")
}

func TestExecuteResponseJSON(t *testing.T) {
	res := &enginev1.ExecuteResponse{
		RequestId:  "req-1",
		Success:    true,
		DurationMs: 12,
		Response: &enginev1.TargetResponse{
			StatusCode: 200,
			Headers: enginev1.Headers{
				{Name: "Set-Cookie", Values: []string{"a=1", "b=2"}},
				{Name: "Content-Type", Values: []string{"text/plain"}},
			},
			Body:     enginev1.Bytes("ok"),
			Url:      "https://example.com/",
			Protocol: "h2",
		},
	}

	b, err := json.Marshal(res)
	assert.OK(t, err)
	assert.Equal(t, string(b), `{"request_id":"req-1","success":true,"error_message":"","duration_ms":12,`+
		`"response":{"status_code":200,"headers":{"Set-Cookie":{"values":["a=1","b=2"]},"Content-Type":{"values":["text/plain"]}},`+
		`"body":"6f6b","url":"https://example.com/","protocol":"h2"}}`)

	failure, err := json.Marshal(&enginev1.ExecuteResponse{RequestId: "x", ErrorMessage: "Canceled"})
	assert.OK(t, err)
	assert.Equal(t, string(failure), `{"request_id":"x","success":false,"error_message":"Canceled","duration_ms":0,"response":null}`)
}

func TestExecuteRequestWireFormat(t *testing.T) {
	req := &enginev1.ExecuteRequest{
		RequestId: "id",
		Target: &enginev1.TargetRequest{
			Url: "http://a/",
			Headers: enginev1.Headers{
				{Name: "X", Values: []string{"1", ""}},
			},
			Body: enginev1.Bytes{0, 1, 2},
		},
		Config: &enginev1.ExecutionConfig{
			FollowRedirects: true,
			Proxy:           &enginev1.ProxyConfig{Type: enginev1.ProxyTypeHTTPS, Host: "p", Port: 8443, Username: "u", Password: "pw"},
			TimeoutMs:       30000,
		},
	}

	b, err := req.MarshalVT()
	assert.OK(t, err)

	// Fields unknown to the message must be skipped.
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future field")

	var got enginev1.ExecuteRequest
	assert.OK(t, got.UnmarshalVT(b))
	assert.DeepEqual(t, &got, req)
}

func TestExecuteRequestWireFieldNumbers(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "req")
	var target []byte
	target = protowire.AppendTag(target, 1, protowire.BytesType)
	target = protowire.AppendString(target, "http://example.com/")
	target = protowire.AppendTag(target, 2, protowire.BytesType)
	target = protowire.AppendString(target, "HEAD")
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, target)

	var req enginev1.ExecuteRequest
	assert.OK(t, req.UnmarshalVT(b))
	assert.Equal(t, req.RequestId, "req")
	assert.Equal(t, req.Target.Url, "http://example.com/")
	assert.Equal(t, req.Target.Method, "HEAD")
}

func TestExecuteResponseWireFormat(t *testing.T) {
	res := &enginev1.ExecuteResponse{
		RequestId:    "id",
		ErrorMessage: "net::ERR_CONNECTION_REFUSED",
		DurationMs:   7,
		Response: &enginev1.TargetResponse{
			StatusCode: 302,
			Headers:    enginev1.Headers{{Name: "Location", Values: []string{"/next"}}},
			Url:        "http://a/",
			Protocol:   "http/1.1",
		},
	}
	b, err := res.MarshalVT()
	assert.OK(t, err)

	var got enginev1.ExecuteResponse
	assert.OK(t, got.UnmarshalVT(b))
	assert.DeepEqual(t, &got, res)
}

func TestTruncatedMessage(t *testing.T) {
	b, err := (&enginev1.VersionResponse{Version: "v1.2.3"}).MarshalVT()
	assert.OK(t, err)

	var v enginev1.VersionResponse
	assert.True(t, v.UnmarshalVT(b[:len(b)-1]) != nil, "expected an error decoding a truncated message")
}

func TestCodecs(t *testing.T) {
	codec := enginev1.JSONCodec{}
	assert.Equal(t, codec.Name(), "json")

	b, err := codec.Marshal(&enginev1.VersionResponse{Version: "1", Service: "cloak"})
	assert.OK(t, err)

	var v enginev1.VersionResponse
	assert.OK(t, codec.Unmarshal(b, &v))
	assert.Equal(t, v, enginev1.VersionResponse{Version: "1", Service: "cloak"})
}
