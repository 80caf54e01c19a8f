package enginev1

import (
	"encoding/json"
)

// JSONCodec is the connect codec of the application/json content type. It
// produces the same documents as the REST endpoints.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
