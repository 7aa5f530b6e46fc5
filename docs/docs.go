// Package docs swagger 文档，由 swag init 生成后精简
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {"get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}},
        "/readyz": {"get": {"tags": ["health"], "summary": "Readiness check", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}},
        "/api/v1/auth/login": {"post": {"tags": ["auth"], "summary": "登录获取 JWT", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/api/v1/watchers": {"post": {"tags": ["auth"], "summary": "新建 watcher", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}},
        "/api/v1/reservoirs": {"get": {"tags": ["reservoirs"], "summary": "水库列表", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/reservoirs/{name}": {"patch": {"tags": ["reservoirs"], "summary": "启用 / 停用水库", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/api/v1/search": {"post": {"tags": ["search"], "summary": "扇出搜索", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/api/v1/streams": {
            "get": {"tags": ["streams"], "summary": "流状态列表", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["streams"], "summary": "启动流式查询", "security": [{"BearerAuth": []}], "responses": {"202": {"description": "Accepted"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}}
        },
        "/api/v1/invoices": {"get": {"tags": ["invoices"], "summary": "调用记录", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/distilleries": {"get": {"tags": ["distilleries"], "summary": "distillery 列表", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/distilleries/{name}/documents": {"get": {"tags": ["distilleries"], "summary": "文档列表", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/api/v1/distilleries/{name}/subscription": {
            "post": {"tags": ["alerts"], "summary": "订阅", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["alerts"], "summary": "取消订阅", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/subscriptions": {"get": {"tags": ["alerts"], "summary": "我的订阅", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/alerts": {"get": {"tags": ["alerts"], "summary": "我的告警", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/graph/edges": {
            "post": {"tags": ["事件图"], "summary": "新建边", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["事件图"], "summary": "删除边", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/graph/nodes/{id}": {"get": {"tags": ["事件图"], "summary": "节点详情", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/graph/nodes/{id}/outgoing": {"get": {"tags": ["事件图"], "summary": "出边列表", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/graph/nodes/{id}/incoming": {"get": {"tags": ["事件图"], "summary": "入边列表", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/graph/import/{format}": {"post": {"tags": ["事件图"], "summary": "导入事件图", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "pumproom API",
	Description:      "情报源聚合网关：扇出查询、流式采集、蒸馏、告警与事件图",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
