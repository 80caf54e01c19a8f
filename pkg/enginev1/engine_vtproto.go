package enginev1

import (
	"google.golang.org/protobuf/encoding/protowire"
)

func (m *ExecuteRequest) MarshalVT() ([]byte, error) { return m.appendVT(nil), nil }

func (m *ExecuteRequest) appendVT(b []byte) []byte {
	b = appendString(b, 1, m.RequestId)
	if m.Target != nil {
		b = appendMessage(b, 2, m.Target.appendVT(nil))
	}
	if m.Config != nil {
		b = appendMessage(b, 3, m.Config.appendVT(nil))
	}
	return b
}

func (m *ExecuteRequest) UnmarshalVT(b []byte) error {
	*m = ExecuteRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.RequestId)
		case num == 2 && typ == protowire.BytesType:
			m.Target = new(TargetRequest)
			return consumeMessage(b, m.Target.UnmarshalVT)
		case num == 3 && typ == protowire.BytesType:
			m.Config = new(ExecutionConfig)
			return consumeMessage(b, m.Config.UnmarshalVT)
		}
		return 0, nil
	})
}

func (m *TargetRequest) MarshalVT() ([]byte, error) { return m.appendVT(nil), nil }

func (m *TargetRequest) appendVT(b []byte) []byte {
	b = appendString(b, 1, m.Url)
	b = appendString(b, 2, m.Method)
	b = appendHeaders(b, 3, m.Headers)
	b = appendBytes(b, 4, m.Body)
	return b
}

func (m *TargetRequest) UnmarshalVT(b []byte) error {
	*m = TargetRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.Url)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.Method)
		case num == 3 && typ == protowire.BytesType:
			return consumeHeader(b, &m.Headers)
		case num == 4 && typ == protowire.BytesType:
			return consumeBytes(b, (*[]byte)(&m.Body))
		}
		return 0, nil
	})
}

func (m *ExecutionConfig) MarshalVT() ([]byte, error) { return m.appendVT(nil), nil }

func (m *ExecutionConfig) appendVT(b []byte) []byte {
	b = appendBool(b, 1, m.FollowRedirects)
	if m.Proxy != nil {
		b = appendMessage(b, 2, m.Proxy.appendVT(nil))
	}
	b = appendVarint(b, 3, uint64(m.TimeoutMs))
	return b
}

func (m *ExecutionConfig) UnmarshalVT(b []byte) error {
	*m = ExecutionConfig{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.FollowRedirects = protowire.DecodeBool(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			m.Proxy = new(ProxyConfig)
			return consumeMessage(b, m.Proxy.UnmarshalVT)
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.TimeoutMs = int64(v)
			return n, nil
		}
		return 0, nil
	})
}

func (m *ProxyConfig) MarshalVT() ([]byte, error) { return m.appendVT(nil), nil }

func (m *ProxyConfig) appendVT(b []byte) []byte {
	b = appendVarint(b, 1, uint64(m.Type))
	b = appendString(b, 2, m.Host)
	b = appendVarint(b, 3, uint64(m.Port))
	b = appendString(b, 4, m.Username)
	b = appendString(b, 5, m.Password)
	return b
}

func (m *ProxyConfig) UnmarshalVT(b []byte) error {
	*m = ProxyConfig{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Type = ProxyType(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.Host)
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Port = uint32(v)
			return n, nil
		case num == 4 && typ == protowire.BytesType:
			return consumeString(b, &m.Username)
		case num == 5 && typ == protowire.BytesType:
			return consumeString(b, &m.Password)
		}
		return 0, nil
	})
}

func (m *ExecuteResponse) MarshalVT() ([]byte, error) { return m.appendVT(nil), nil }

func (m *ExecuteResponse) appendVT(b []byte) []byte {
	b = appendString(b, 1, m.RequestId)
	b = appendBool(b, 2, m.Success)
	b = appendString(b, 3, m.ErrorMessage)
	b = appendVarint(b, 4, uint64(m.DurationMs))
	if m.Response != nil {
		b = appendMessage(b, 5, m.Response.appendVT(nil))
	}
	return b
}

func (m *ExecuteResponse) UnmarshalVT(b []byte) error {
	*m = ExecuteResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.RequestId)
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Success = protowire.DecodeBool(v)
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &m.ErrorMessage)
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.DurationMs = int64(v)
			return n, nil
		case num == 5 && typ == protowire.BytesType:
			m.Response = new(TargetResponse)
			return consumeMessage(b, m.Response.UnmarshalVT)
		}
		return 0, nil
	})
}

func (m *TargetResponse) MarshalVT() ([]byte, error) { return m.appendVT(nil), nil }

func (m *TargetResponse) appendVT(b []byte) []byte {
	b = appendVarint(b, 1, uint64(m.StatusCode))
	b = appendHeaders(b, 2, m.Headers)
	b = appendBytes(b, 3, m.Body)
	b = appendString(b, 4, m.Url)
	b = appendString(b, 5, m.Protocol)
	return b
}

func (m *TargetResponse) UnmarshalVT(b []byte) error {
	*m = TargetResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.StatusCode = int32(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			return consumeHeader(b, &m.Headers)
		case num == 3 && typ == protowire.BytesType:
			return consumeBytes(b, (*[]byte)(&m.Body))
		case num == 4 && typ == protowire.BytesType:
			return consumeString(b, &m.Url)
		case num == 5 && typ == protowire.BytesType:
			return consumeString(b, &m.Protocol)
		}
		return 0, nil
	})
}

func (m *VersionRequest) MarshalVT() ([]byte, error) { return []byte{}, nil }

func (m *VersionRequest) UnmarshalVT(b []byte) error {
	return unmarshalFields(b, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return 0, nil
	})
}

func (m *VersionResponse) MarshalVT() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Version)
	b = appendString(b, 2, m.Service)
	b = appendString(b, 3, m.Build)
	return b, nil
}

func (m *VersionResponse) UnmarshalVT(b []byte) error {
	*m = VersionResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.Version)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.Service)
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &m.Build)
		}
		return 0, nil
	})
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// appendHeaders encodes headers as a map<string, HeaderValues>, one entry
// per header in the order of the list.
func appendHeaders(b []byte, num protowire.Number, headers Headers) []byte {
	for _, h := range headers {
		var values []byte
		for _, v := range h.Values {
			values = protowire.AppendTag(values, 1, protowire.BytesType)
			values = protowire.AppendString(values, v)
		}
		var entry []byte
		entry = appendString(entry, 1, h.Name)
		entry = appendMessage(entry, 2, values)
		b = appendMessage(b, num, entry)
	}
	return b
}

// unmarshalFields calls decode for each field of the message in b. decode
// returns the number of bytes of the field value it consumed, or zero to skip
// unknown fields.
func unmarshalFields(b []byte, decode func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := decode(num, typ, b)
		if err != nil {
			return err
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func consumeString(b []byte, s *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	*s = v
	return n, nil
}

func consumeBytes(b []byte, p *[]byte) (int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*p = append((*p)[:0], v...)
	}
	return n, nil
}

func consumeMessage(b []byte, unmarshal func([]byte) error) (int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, unmarshal(v)
}

func consumeHeader(b []byte, headers *Headers) (int, error) {
	return consumeMessage(b, func(entry []byte) error {
		var h Header
		err := unmarshalFields(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == 1 && typ == protowire.BytesType:
				return consumeString(b, &h.Name)
			case num == 2 && typ == protowire.BytesType:
				return consumeMessage(b, func(values []byte) error {
					return unmarshalFields(values, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
						if num == 1 && typ == protowire.BytesType {
							v, n := protowire.ConsumeString(b)
							h.Values = append(h.Values, v)
							return n, nil
						}
						return 0, nil
					})
				})
			}
			return 0, nil
		})
		if err != nil {
			return err
		}
		*headers = append(*headers, h)
		return nil
	})
}
