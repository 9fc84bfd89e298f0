package middleware

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
)

func TestIPLimiters_PerClient(t *testing.T) {
	l := newIPLimiters(1, 2)
	now := time.Unix(1000, 0)

	assert.True(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.1", now))
	assert.False(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.2", now))
	assert.True(t, l.allow("10.0.0.1", now.Add(time.Second)))
}

func TestAllowOrigin(t *testing.T) {
	m := NewMiddleware(Options{CORSEnabled: true, AllowOrigins: []string{"http://app.example"}})
	// 浏览器按自己发送的 Origin 比对响应头，因此回显请求值而非配置值
	assert.Equal(t, "http://APP.example", m.allowOrigin("http://APP.example"))
	assert.Empty(t, m.allowOrigin("http://evil.example"))

	m = NewMiddleware(Options{AllowOrigins: []string{"*"}})
	assert.Equal(t, "*", m.allowOrigin("anything"))
}

func corsServer(opts Options) *server.Hertz {
	h := server.Default(server.WithHostPorts("127.0.0.1:0"))
	h.Use(NewMiddleware(opts).CORS())
	h.GET("/ping", func(c context.Context, ctx *app.RequestContext) {
		ctx.String(consts.StatusOK, "pong")
	})
	return h
}

func TestCORS_EchoesAllowedOrigin(t *testing.T) {
	h := corsServer(Options{CORSEnabled: true, AllowOrigins: []string{"http://app.example"}})

	w := ut.PerformRequest(h.Engine, "GET", "/ping", &ut.Body{Body: bytes.NewReader(nil), Len: 0},
		ut.Header{Key: "Origin", Value: "http://APP.example"})
	resp := w.Result()
	assert.Equal(t, consts.StatusOK, resp.StatusCode())
	assert.Equal(t, "http://APP.example", string(resp.Header.Peek("Access-Control-Allow-Origin")))

	w = ut.PerformRequest(h.Engine, "GET", "/ping", &ut.Body{Body: bytes.NewReader(nil), Len: 0},
		ut.Header{Key: "Origin", Value: "http://evil.example"})
	resp = w.Result()
	assert.Equal(t, consts.StatusForbidden, resp.StatusCode())
	assert.Empty(t, resp.Header.Peek("Access-Control-Allow-Origin"))
}

func TestCORS_Disabled(t *testing.T) {
	h := corsServer(Options{AllowOrigins: []string{"http://app.example"}})
	w := ut.PerformRequest(h.Engine, "GET", "/ping", &ut.Body{Body: bytes.NewReader(nil), Len: 0},
		ut.Header{Key: "Origin", Value: "http://evil.example"})
	resp := w.Result()
	assert.Equal(t, consts.StatusOK, resp.StatusCode())
	assert.Empty(t, resp.Header.Peek("Access-Control-Allow-Origin"))
}

func TestNewMiddleware_RateLimitDisabled(t *testing.T) {
	assert.Nil(t, NewMiddleware(Options{RateLimit: true}).limiters)
	assert.NotNil(t, NewMiddleware(Options{RateLimit: true, RateLimitRPS: 1}).limiters)
}
