// Package sse 提供 C5 事件发射器：把任意生成管道的 content/meta/error 通道适配为
// Gin 的 Server-Sent Events 响应，供各 Chapter-Generate/Wizard/Outline-Continue 编排端点复用。
package sse

import (
	"io"

	"github.com/gin-gonic/gin"
)

// Event 是向客户端推送的一条 SSE 消息。
type Event struct {
	Name string
	Data gin.H
}

// Source 是编排器产出的事件流：Events 携带增量内容，Done 在终止时携带最终负载，
// Err 携带失败原因。三个通道都必须最终关闭，Emit 据此判断流结束。
type Source struct {
	Events <-chan Event
	Done   <-chan gin.H
	Err    <-chan error
}

// Emit 设置 SSE 响应头并消费 Source 直至完成、出错或客户端断开。
func Emit(c *gin.Context, src Source) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	events, done, errs := src.Events, src.Done, src.Err

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-events:
			if !ok {
				events = nil
				return done != nil || errs != nil
			}
			c.SSEvent(evt.Name, evt.Data)
			return true

		case payload, ok := <-done:
			if !ok {
				done = nil
				return events != nil || errs != nil
			}
			c.SSEvent("done", payload)
			return false

		case err, ok := <-errs:
			if !ok {
				errs = nil
				return events != nil || done != nil
			}
			if err != nil {
				c.SSEvent("error", gin.H{"message": err.Error()})
			}
			return false

		case <-ctx.Done():
			return false
		}
	})
}
