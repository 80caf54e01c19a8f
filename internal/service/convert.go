package service

import (
	"fmt"
	"math"

	"github.com/stealthrocket/cloak/internal/bridge"
	"github.com/stealthrocket/cloak/pkg/enginev1"
)

func convertRequest(req *enginev1.ExecuteRequest) (*bridge.Target, *bridge.ExecutionConfig, error) {
	target := &bridge.Target{
		URL:    req.Target.Url,
		Method: req.Target.Method,
		Body:   req.Target.Body,
	}
	if target.Method == "" {
		target.Method = "GET"
	}
	for _, h := range req.Target.Headers {
		target.Headers = append(target.Headers, bridge.HeaderField{
			Name:   h.Name,
			Values: h.Values,
		})
	}

	// Without configuration, requests follow redirects.
	config := &bridge.ExecutionConfig{FollowRedirects: true}
	if c := req.Config; c != nil {
		config.FollowRedirects = c.FollowRedirects
		if p := c.Proxy; p != nil {
			if p.Port > math.MaxUint16 {
				return target, config, fmt.Errorf("invalid proxy: port must be between 1 and 65535")
			}
			config.Proxy = &bridge.ProxyConfig{
				Scheme:   bridge.ProxyScheme(p.Type),
				Host:     p.Host,
				Port:     uint16(p.Port),
				Username: p.Username,
				Password: p.Password,
			}
			if err := config.Proxy.Validate(); err != nil {
				return target, config, err
			}
		}
	}
	return target, config, nil
}

// convertResult groups the header entries of the result by name, in the
// order names first appear.
func convertResult(result *bridge.RequestResult) *enginev1.TargetResponse {
	res := &enginev1.TargetResponse{
		StatusCode: int32(result.StatusCode),
		Body:       result.Body,
		Url:        result.URL,
		Protocol:   result.NegotiatedProtocol,
	}
	index := make(map[string]int, len(result.Headers))
	for _, h := range result.Headers {
		i, ok := index[h.Name]
		if !ok {
			i = len(res.Headers)
			index[h.Name] = i
			res.Headers = append(res.Headers, enginev1.Header{Name: h.Name})
		}
		res.Headers[i].Values = append(res.Headers[i].Values, h.Value)
	}
	return res
}

func labelProxied(config *bridge.ExecutionConfig) string {
	if config != nil && config.Proxy != nil {
		return "true"
	}
	return "false"
}
