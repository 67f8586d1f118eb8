// Package serverless hosts the HTTP handler behind an API Gateway REST proxy
// integration.
package serverless

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Handler is the function signature lambda.Start expects for proxy events.
type Handler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// NewAPIGatewayHandler adapts h to API Gateway proxy events. Binary response
// bodies are base64 encoded and flagged for the gateway to decode.
func NewAPIGatewayHandler(h http.Handler) Handler {
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		req, err := toHTTPRequest(ctx, event)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return toProxyResponse(rec), nil
	}
}

func toHTTPRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decode base64 event body: %w", err)
		}
		body = decoded
	}

	u := url.URL{Path: event.Path, RawQuery: queryString(event).Encode()}
	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, u.RequestURI(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}

	for name, values := range event.MultiValueHeaders {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	for name, v := range event.Headers {
		if _, ok := event.MultiValueHeaders[name]; !ok {
			req.Header.Set(name, v)
		}
	}

	req.ContentLength = int64(len(body))
	req.Host = req.Header.Get("Host")
	if ip := event.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = ip + ":0"
	}
	if id := event.RequestContext.RequestID; id != "" && req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", id)
	}
	return req, nil
}

func queryString(event events.APIGatewayProxyRequest) url.Values {
	q := url.Values{}
	for k, values := range event.MultiValueQueryStringParameters {
		for _, v := range values {
			q.Add(k, v)
		}
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := q[k]; !ok {
			q.Set(k, v)
		}
	}
	return q
}

func toProxyResponse(rec *httptest.ResponseRecorder) events.APIGatewayProxyResponse {
	res := rec.Result()
	headers := make(map[string]string, len(res.Header))
	multi := make(map[string][]string, len(res.Header))
	for name, values := range res.Header {
		headers[name] = strings.Join(values, ",")
		multi[name] = values
	}

	resp := events.APIGatewayProxyResponse{
		StatusCode:        res.StatusCode,
		Headers:           headers,
		MultiValueHeaders: multi,
	}
	if isTextContent(res.Header.Get("Content-Type")) {
		resp.Body = rec.Body.String()
	} else if rec.Body.Len() > 0 {
		resp.Body = base64.StdEncoding.EncodeToString(rec.Body.Bytes())
		resp.IsBase64Encoded = true
	}
	return resp
}

func isTextContent(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" ||
		strings.HasPrefix(ct, "text/") ||
		strings.HasPrefix(ct, "application/json") ||
		strings.Contains(ct, "+json")
}
