// Package docs - swag 형식으로 등록되는 OpenAPI 문서.
// handler 의 godoc 주석과 같은 내용을 유지한다 (`go generate` 로 swag init 재생성 가능).
// 라우트와 문서가 어긋나면 handler.TestOpenAPIDocumentCoversRoutes 가 실패한다.
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
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Root",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RootResponse"}}
                }
            }
        },
        "/ping": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.PingResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Pings PostgreSQL and Redis.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/model.HealthResponse"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "description": "Creates a LOCAL account with the default USER role. Does not log in.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new local user",
                "parameters": [
                    {"description": "Email, password and display name", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "description": "Sets access_token and refresh_token HttpOnly cookies.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login with email and password",
                "parameters": [
                    {"description": "Email and password", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.LoginResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "description": "Uses the refresh_token cookie. The presented token is revoked and a new pair is set.",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Rotate the refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.MessageResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "description": "Revokes the refresh token (if present) and clears both cookies.",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Logout",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.MessageResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/auth/logout-all": {
            "post": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Logout from every device",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RevokeSessionsResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.User"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/auth/{provider}": {
            "get": {
                "description": "Sets the oauth_state cookie and redirects to the provider's consent page. Only configured providers are routed.",
                "tags": ["auth"],
                "summary": "Start OAuth login",
                "parameters": [
                    {"enum": ["google", "github", "kakao"], "type": "string", "description": "OAuth provider", "name": "provider", "in": "path", "required": true}
                ],
                "responses": {
                    "302": {"description": "Found"}
                }
            }
        },
        "/auth/{provider}/callback": {
            "get": {
                "description": "Checks state, exchanges the code, sets session cookies and redirects to FRONTEND_URL/?oauth=success.",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "OAuth callback",
                "parameters": [
                    {"enum": ["google", "github", "kakao"], "type": "string", "description": "OAuth provider", "name": "provider", "in": "path", "required": true},
                    {"type": "string", "description": "Authorization code", "name": "code", "in": "query"},
                    {"type": "string", "description": "State echoed by the provider", "name": "state", "in": "query", "required": true}
                ],
                "responses": {
                    "302": {"description": "Found"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/users/{id}/revoke-sessions": {
            "post": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Revoke every session of a user",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RevokeSessionsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/posts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "List posts",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Post"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Create a post",
                "parameters": [
                    {"description": "Title and content", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.CreatePostRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Post"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Get a post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Post"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            },
            "patch": {
                "security": [{"CookieAuth": []}],
                "description": "Only the author, ADMIN or MODERATOR may update.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Update a post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.UpdatePostRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Post"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"CookieAuth": []}],
                "description": "Only the author, ADMIN or MODERATOR may delete.",
                "tags": ["posts"],
                "summary": "Delete a post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "model.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "model.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "model.PingResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "model.RootResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "status": {"type": "string"}}
        },
        "model.HealthResponse": {
            "type": "object",
            "properties": {"postgres": {"type": "string"}, "redis": {"type": "string"}, "status": {"type": "string"}}
        },
        "model.RegisterRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {
                "email": {"type": "string", "maxLength": 254},
                "name": {"type": "string", "maxLength": 100},
                "password": {"type": "string", "maxLength": 72, "minLength": 6}
            }
        },
        "model.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "model.LoginResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "user": {"$ref": "#/definitions/model.User"}}
        },
        "model.RevokeSessionsResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "revoked": {"type": "integer"}}
        },
        "model.User": {
            "type": "object",
            "properties": {
                "avatar": {"type": "string"},
                "createdAt": {"type": "string"},
                "email": {"type": "string"},
                "emailVerified": {"type": "boolean"},
                "id": {"type": "string"},
                "isActive": {"type": "boolean"},
                "lastLoginAt": {"type": "string"},
                "name": {"type": "string"},
                "provider": {"type": "string", "enum": ["LOCAL", "GOOGLE", "GITHUB", "KAKAO"]},
                "providerId": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "updatedAt": {"type": "string"}
            }
        },
        "model.Post": {
            "type": "object",
            "properties": {
                "authorId": {"type": "string"},
                "content": {"type": "string"},
                "createdAt": {"type": "string"},
                "id": {"type": "integer"},
                "title": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "model.CreatePostRequest": {
            "type": "object",
            "required": ["content", "title"],
            "properties": {"content": {"type": "string"}, "title": {"type": "string", "maxLength": 255}}
        },
        "model.UpdatePostRequest": {
            "type": "object",
            "properties": {"content": {"type": "string"}, "title": {"type": "string", "maxLength": 255}}
        }
    },
    "securityDefinitions": {
        "CookieAuth": {"type": "apiKey", "name": "access_token", "in": "cookie"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "postboard API",
	Description:      "Posts CRUD with cookie-based JWT sessions, refresh rotation and RBAC.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
